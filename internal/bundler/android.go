package bundler

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/Norgate-AV/bundler/internal/codes"
	"github.com/Norgate-AV/bundler/internal/compiler"
	"github.com/Norgate-AV/bundler/internal/config"
	"github.com/Norgate-AV/bundler/internal/library"
	"github.com/Norgate-AV/bundler/internal/postprocess"
	"github.com/Norgate-AV/bundler/internal/target"
)

// Android packaging tools
const (
	Aapt      = "aapt"
	Zipalign  = "zipalign"
	Apksigner = "apksigner"
)

// Environment that locates the SDK and the signing key
const (
	EnvAndroidHome      = "ANDROID_HOME"
	EnvAndroidSDKRoot   = "ANDROID_SDK_ROOT"
	EnvKeystore         = "ANDROID_KEYSTORE"
	EnvKeystorePassword = "ANDROID_KEYSTORE_PASSWORD"
	defaultKeystorePass = "android"
	arm64ABI            = "arm64-v8a"
)

// Android builds an APK around the native activity library
type Android struct {
	hooks

	getenv func(string) string
}

// NewAndroid creates the Android bundler
func NewAndroid(runner compiler.Runner, logger *log.Logger) *Android {
	return &Android{hooks: hooks{runner: runner, logger: logger}, getenv: os.Getenv}
}

func (a *Android) Requirements(cfg *config.Config) []compiler.Requirement {
	return []compiler.Requirement{
		requirement(cfg, Aapt, "package the apk"),
		requirement(cfg, Zipalign, "align the apk"),
	}
}

func (a *Android) appDir(cfg *config.Config) string {
	return filepath.Join(cfg.BundleLocation(), cfg.AppName)
}

func (a *Android) BundledExecutableDirectory(cfg *config.Config) string {
	return filepath.Join(a.appDir(cfg), "lib")
}

func (a *Android) BundledResourcesDirectory(cfg *config.Config) string {
	return filepath.Join(a.appDir(cfg), "assets")
}

// APKPath is the aligned package
func (a *Android) APKPath(cfg *config.Config) string {
	return filepath.Join(cfg.BundleLocation(), cfg.AppName+".apk")
}

// env reads the explicit environment first, then the process environment
func (a *Android) env(cfg *config.Config, key string) string {
	if v, ok := compiler.Env(cfg.EnvList()).Get(key); ok {
		return v
	}

	return a.getenv(key)
}

func (a *Android) platformJar(cfg *config.Config) (string, error) {
	sdk := a.env(cfg, EnvAndroidHome)
	if sdk == "" {
		sdk = a.env(cfg, EnvAndroidSDKRoot)
	}

	if sdk == "" {
		return "", codes.Requirementf("could not find the Android SDK: set %s", EnvAndroidHome)
	}

	jar := filepath.Join(sdk, "platforms", library.AndroidPlatform, "android.jar")
	if !exists(jar) {
		return "", codes.Requirementf("could not find %s", jar)
	}

	return jar, nil
}

func (a *Android) keystore(cfg *config.Config) string {
	if ks := a.env(cfg, EnvKeystore); ks != "" {
		return ks
	}

	if home := a.getenv("HOME"); home != "" && !cfg.Release {
		if debug := filepath.Join(home, ".android", "debug.keystore"); exists(debug) {
			return debug
		}
	}

	return ""
}

func (a *Android) run(ctx context.Context, dir, tool string, args ...string) error {
	cmd := &compiler.ShellCommand{Path: tool, Args: args, Dir: dir}
	if err := a.runner.Run(ctx, cmd); err != nil {
		return codes.ToolchainErr("could not run "+cmd.String(), err)
	}

	return nil
}

func (a *Android) Bundle(ctx context.Context, cfg *config.Config) error {
	if cfg.Target != target.AArch64LinuxAndroid {
		return codes.Configurationf("unsupported android target %s", cfg.Target)
	}

	location := cfg.BundleLocation()
	appDir := a.appDir(cfg)
	libDir := filepath.Join(a.BundledExecutableDirectory(cfg), arm64ABI)
	resDir := filepath.Join(location, "res")

	a.logger.Info("bundling", "apk", a.APKPath(cfg))

	if err := recreate(resDir); err != nil {
		return err
	}

	for _, icons := range cfg.Icons {
		if err := copyContents(icons, resDir); err != nil {
			return err
		}
	}

	if err := recreate(appDir, libDir); err != nil {
		return err
	}

	jar, err := a.platformJar(cfg)
	if err != nil {
		return err
	}

	exeName := cfg.BundledExecutableName(config.AndroidLib)
	libName := strings.TrimSuffix(strings.TrimPrefix(exeName, "lib"), "."+cfg.Target.ExecutableExtension())

	manifest := filepath.Join(location, "AndroidManifest.xml")
	m, err := NewAndroidManifest(cfg, libName, len(cfg.Icons) > 0)
	if err != nil {
		return err
	}

	if err := m.Write(manifest); err != nil {
		return err
	}

	unaligned := filepath.Join(location, cfg.AppName+"-unaligned.apk")
	args := []string{"package", "-f", "-F", unaligned, "-M", manifest, "-I", jar, "-S", resDir}
	if !cfg.Release {
		args = append(args, "-0", "")
	}

	if err := a.run(ctx, location, cfg.Tool(Aapt), args...); err != nil {
		return err
	}

	libs, err := a.collectLibraries(cfg, exeName)
	if err != nil {
		return err
	}

	for _, lib := range libs {
		if err := copyFile(lib.src, filepath.Join(libDir, lib.name)); err != nil {
			return err
		}

		if err := a.run(ctx, appDir, cfg.Tool(Aapt), "add", unaligned, path.Join("lib", arm64ABI, lib.name)); err != nil {
			return err
		}
	}

	apk := a.APKPath(cfg)
	if err := a.run(ctx, location, cfg.Tool(Zipalign), "-f", "4", unaligned, apk); err != nil {
		return err
	}

	ks := a.keystore(cfg)
	if ks == "" {
		a.logger.Warn("no keystore found, the apk is not signed", "apk", apk)
		return nil
	}

	pass := a.env(cfg, EnvKeystorePassword)
	if pass == "" {
		pass = defaultKeystorePass
	}

	return a.run(ctx, location, cfg.Tool(Apksigner), "sign", "--ks", ks, "--ks-pass", "pass:"+pass, apk)
}

type packagedLibrary struct {
	src  string
	name string
}

// collectLibraries returns the native activity library and every compiled
// library, each followed by the compiled libraries it needs. System
// libraries are left to the device.
func (a *Android) collectLibraries(cfg *config.Config, exeName string) ([]packagedLibrary, error) {
	var roots []packagedLibrary
	for _, exe := range cfg.Executables {
		if exe == config.AndroidLib {
			roots = append(roots, packagedLibrary{src: cfg.CompiledExecutablePath(exe), name: exeName})
		}
	}

	compiled, err := CompiledLibraries(cfg)
	if err != nil {
		return nil, err
	}

	for _, lib := range compiled {
		roots = append(roots, packagedLibrary{src: lib, name: filepath.Base(lib)})
	}

	seen := make(map[string]bool)
	var out []packagedLibrary

	for _, root := range roots {
		closure, err := postprocess.LibraryClosure(root.src, cfg.CompiledLibrariesDir())
		if err != nil {
			return nil, codes.Edit("could not read needed libraries", root.src, err)
		}

		for i, src := range closure {
			name := filepath.Base(src)
			if i == 0 {
				name = root.name
			}

			if seen[name] {
				continue
			}

			seen[name] = true
			out = append(out, packagedLibrary{src: src, name: name})
		}
	}

	return out, nil
}
