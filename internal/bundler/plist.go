package bundler

import (
	"os"
	"path/filepath"
	"text/template"

	"github.com/Norgate-AV/bundler/internal/codes"
)

// PlistInfo fills the Info.plist template
type PlistInfo struct {
	BundleName        string
	BundleDisplayName string
	ExecutableName    string
	Identifier        string
	Version           string

	// Icon is the file name of the icon inside Resources, empty for none
	Icon string
}

const infoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple Computer//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>CFBundleDevelopmentRegion</key>
  <string>English</string>
  <key>CFBundleDisplayName</key>
  <string>{{html .BundleDisplayName}}</string>
  <key>CFBundleExecutable</key>
  <string>{{html .ExecutableName}}</string>
  <key>CFBundleIdentifier</key>
  <string>{{html .Identifier}}</string>
  <key>CFBundleIconFile</key>
  <string>{{html .Icon}}</string>
  <key>CFBundleInfoDictionaryVersion</key>
  <string>6.0</string>
  <key>CFBundleName</key>
  <string>{{html .BundleName}}</string>
  <key>CFBundlePackageType</key>
  <string>APPL</string>
  <key>CFBundleShortVersionString</key>
  <string>{{.Version}}</string>
  <key>CFBundleVersion</key>
  <string>{{.Version}}</string>
  <key>CSResourcesFileMapped</key>
  <true/>
  <key>LSRequiresCarbon</key>
  <true/>
  <key>NSHighResolutionCapable</key>
  <true/>
  <key>LSEnvironment</key>
  <dict>
    <key>WANTS_INTERACTIVE_SESSION</key>
    <string>true</string>
  </dict>
</dict>
</plist>
`

var defaultPlistTemplate = template.Must(template.New("Info.plist").Parse(infoPlist))

// plistTemplate returns the user supplied template at path, or the built-in one
func plistTemplate(path string) (*template.Template, error) {
	if path == "" {
		return defaultPlistTemplate, nil
	}

	tmpl, err := template.New(filepath.Base(path)).ParseFiles(path)
	if err != nil {
		return nil, codes.New(codes.Configuration, "could not parse plist template", path, err)
	}

	return tmpl, nil
}

// WritePlist renders the template at templatePath, or the built-in one, to path
func WritePlist(path, templatePath string, info PlistInfo) error {
	tmpl, err := plistTemplate(templatePath)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return codes.FS("could not create", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, info); err != nil {
		return codes.FS("could not render Info.plist", path, err)
	}

	return nil
}
