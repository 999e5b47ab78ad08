package postprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
)

// StackSize is the thread stack reservation of Windows executables, in bytes.
// The embedded runtime overflows the linker default with deep native call stacks.
const StackSize = 16000000

// Editbin patches PE headers
const Editbin = "editbin"

// ResourceInfo parameterizes the resource script and the application manifest
type ResourceInfo struct {
	Name           string
	Identifier     string
	Author         string
	Version        config.Version
	ExecutableName string

	// Icon is an absolute path to a .ico file, empty for none
	Icon string
}

// IconLine is the resource statement that embeds the icon
func (r ResourceInfo) IconLine() string {
	if r.Icon == "" {
		return ""
	}

	return "100 ICON " + strconv.Quote(filepath.ToSlash(r.Icon))
}

var resourceTemplate = template.Must(template.New("rc").Parse(`#include "windows.h"

1 RT_MANIFEST "{{.ExecutableName}}.manifest"
{{.IconLine}}

VS_VERSION_INFO VERSIONINFO
FILEVERSION     {{.Version.Major}},{{.Version.Minor}},{{.Version.Patch}},0
PRODUCTVERSION  {{.Version.Major}},{{.Version.Minor}},{{.Version.Patch}},0
FILEFLAGSMASK   VS_FFI_FILEFLAGSMASK
FILEFLAGS       0
FILEOS          VOS__WINDOWS32
FILETYPE        VFT_APP
FILESUBTYPE     VFT2_UNKNOWN
BEGIN
    BLOCK "StringFileInfo"
    BEGIN
        BLOCK "040904E4"
        BEGIN
            VALUE "CompanyName", "{{.Author}}\0"
            VALUE "FileDescription", "{{.Name}}\0"
            VALUE "FileVersion", "{{.Version}}\0"
            VALUE "ProductName", "{{.Name}}\0"
            VALUE "ProductVersion", "{{.Version}}\0"
        END
    END
    BLOCK "VarFileInfo"
    BEGIN
        VALUE "Translation", 0x409, 1252
    END
END
`))

var manifestTemplate = template.Must(template.New("manifest").Parse(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<assembly manifestVersion="1.0" xmlns="urn:schemas-microsoft-com:asm.v1" xmlns:asmv3="urn:schemas-microsoft-com:asm.v3">
    <assemblyIdentity
            version="{{.Version}}.0"
            processorArchitecture="*"
            name="{{.Identifier}}"
            type="win32"
    />
    <description>{{.Name}}</description>
    <dependency>
        <dependentAssembly>
            <assemblyIdentity
                    type="win32"
                    name="Microsoft.Windows.Common-Controls"
                    version="6.0.0.0"
                    processorArchitecture="*"
                    publicKeyToken="6595b64144ccf1df"
                    language="*"
            />
        </dependentAssembly>
    </dependency>
    <asmv3:application>
        <asmv3:windowsSettings>
            <dpiAware xmlns="http://schemas.microsoft.com/SMI/2005/WindowsSettings">True/PM</dpiAware>
            <dpiAwareness xmlns="http://schemas.microsoft.com/SMI/2016/WindowsSettings">PerMonitorV2</dpiAwareness>
        </asmv3:windowsSettings>
    </asmv3:application>
</assembly>
`))

// FindIcon returns the absolute path of the first existing icon with extension ext
func FindIcon(icons []string, ext string) string {
	for _, icon := range icons {
		if !strings.EqualFold(filepath.Ext(icon), "."+ext) {
			continue
		}

		if _, err := os.Stat(icon); err != nil {
			continue
		}

		if abs, err := filepath.Abs(icon); err == nil {
			return abs
		}

		return icon
	}

	return ""
}

// NewResourceInfo collects the resource metadata of the executable being compiled
func NewResourceInfo(cfg *config.Config, exe config.Executable) ResourceInfo {
	return ResourceInfo{
		Name:           cfg.AppName,
		Identifier:     cfg.Identifier,
		Author:         cfg.Author,
		Version:        cfg.Version,
		ExecutableName: exe.BinaryName(),
		Icon:           FindIcon(cfg.Icons, "ico"),
	}
}

// StageResources renders <ExecutableName>.rc and .manifest into dir and
// returns the path of the resource script
func StageResources(dir string, info ResourceInfo) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", codes.FS("could not create directory", dir, err)
	}

	rc := filepath.Join(dir, info.ExecutableName+".rc")
	if err := render(resourceTemplate, rc, info); err != nil {
		return "", err
	}

	manifest := filepath.Join(dir, info.ExecutableName+".manifest")
	if err := render(manifestTemplate, manifest, info); err != nil {
		return "", err
	}

	return rc, nil
}

func render(tmpl *template.Template, path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return codes.FS("could not create", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return codes.Edit("could not render "+tmpl.Name(), path, err)
	}

	return nil
}

// StackPatcher enlarges the stack reservation of compiled executables
type StackPatcher struct {
	runner compiler.Runner
	tool   string
	logger *log.Logger
}

// NewStackPatcher creates a patcher running tool, usually Editbin
func NewStackPatcher(runner compiler.Runner, tool string, logger *log.Logger) *StackPatcher {
	return &StackPatcher{runner: runner, tool: tool, logger: logger}
}

// Patch sets the stack reservation of the executable to StackSize
func (p *StackPatcher) Patch(ctx context.Context, exe string) error {
	p.logger.Debug("patching stack size", "file", exe, "size", StackSize)

	cmd := &compiler.ShellCommand{
		Path: p.tool,
		Args: []string{fmt.Sprintf("/STACK:%d", StackSize), exe},
		Dir:  filepath.Dir(exe),
	}

	if err := p.runner.Run(ctx, cmd); err != nil {
		return codes.Edit(fmt.Sprintf("could not set /STACK:%d", StackSize), exe, err)
	}

	return nil
}
