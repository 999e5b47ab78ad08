package bundler

import (
	"encoding/xml"
	"os"
	"strconv"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/config"
)

// Android SDK levels the package is built for
const (
	MinSDKVersion    = 30
	TargetSDKVersion = 30
	MaxSDKVersion    = 33

	// apkID occupies the high byte of the version code
	apkID = 1
)

const androidNamespace = "http://schemas.android.com/apk/res/android"

// AndroidManifest is AndroidManifest.xml. The android: prefix is written
// literally, xmlns:android declares it.
type AndroidManifest struct {
	XMLName     xml.Name     `xml:"manifest"`
	Namespace   string       `xml:"xmlns:android,attr"`
	Package     string       `xml:"package,attr"`
	VersionCode string       `xml:"android:versionCode,attr"`
	VersionName string       `xml:"android:versionName,attr"`
	SDK         UsesSDK      `xml:"uses-sdk"`
	Permissions []Permission `xml:"uses-permission"`
	Application Application  `xml:"application"`
}

type UsesSDK struct {
	Min    int `xml:"android:minSdkVersion,attr"`
	Target int `xml:"android:targetSdkVersion,attr"`
	Max    int `xml:"android:maxSdkVersion,attr"`
}

type Permission struct {
	Name string `xml:"android:name,attr"`
}

type Application struct {
	Debuggable string   `xml:"android:debuggable,attr,omitempty"`
	Theme      string   `xml:"android:theme,attr"`
	HasCode    bool     `xml:"android:hasCode,attr"`
	Icon       string   `xml:"android:icon,attr,omitempty"`
	Label      string   `xml:"android:label,attr"`
	Activity   Activity `xml:"activity"`
}

type Activity struct {
	ConfigChanges string       `xml:"android:configChanges,attr"`
	Label         string       `xml:"android:label,attr"`
	Name          string       `xml:"android:name,attr"`
	MetaData      []MetaData   `xml:"meta-data"`
	IntentFilter  IntentFilter `xml:"intent-filter"`
}

type MetaData struct {
	Name  string `xml:"android:name,attr"`
	Value string `xml:"android:value,attr"`
}

type IntentFilter struct {
	Actions    []Permission `xml:"action"`
	Categories []Permission `xml:"category"`
}

// VersionCode packs a version as apk id, major, minor and patch bytes.
// Each component has to fit its byte.
func VersionCode(v config.Version) (uint32, error) {
	if v.Major > 0xff || v.Minor > 0xff || v.Patch > 0xff {
		return 0, codes.Configurationf("version %s does not fit an android version code, components must be 0..255", v)
	}

	return apkID<<24 | uint32(v.Major)<<16 | uint32(v.Minor)<<8 | uint32(v.Patch), nil
}

// NewAndroidManifest describes a single full screen native activity that
// loads libName
func NewAndroidManifest(cfg *config.Config, libName string, withIcon bool) (AndroidManifest, error) {
	code, err := VersionCode(cfg.Version)
	if err != nil {
		return AndroidManifest{}, err
	}

	app := Application{
		Theme:   "@android:style/Theme.DeviceDefault.NoActionBar.Fullscreen",
		HasCode: false,
		Label:   cfg.AppName,
		Activity: Activity{
			ConfigChanges: "orientation|keyboardHidden|screenSize",
			Label:         cfg.AppName,
			Name:          "android.app.NativeActivity",
			MetaData:      []MetaData{{Name: "android.app.lib_name", Value: libName}},
			IntentFilter: IntentFilter{
				Actions:    []Permission{{Name: "android.intent.action.MAIN"}},
				Categories: []Permission{{Name: "android.intent.category.LAUNCHER"}},
			},
		},
	}

	if !cfg.Release {
		app.Debuggable = "true"
	}

	if withIcon {
		app.Icon = "@mipmap/ic_launcher"
	}

	return AndroidManifest{
		Namespace:   androidNamespace,
		Package:     cfg.Identifier,
		VersionCode: strconv.FormatUint(uint64(code), 10),
		VersionName: cfg.Version.String(),
		SDK:         UsesSDK{Min: MinSDKVersion, Target: TargetSDKVersion, Max: MaxSDKVersion},
		Permissions: []Permission{
			{Name: "android.permission.INTERNET"},
			{Name: "android.permission.ACCESS_NETWORK_STATE"},
		},
		Application: app,
	}, nil
}

// Write saves the manifest as indented XML
func (m AndroidManifest) Write(path string) error {
	data, err := xml.MarshalIndent(m, "", "    ")
	if err != nil {
		return codes.FS("could not encode manifest", path, err)
	}

	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return codes.FS("could not write", path, err)
	}

	return nil
}
