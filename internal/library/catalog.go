package library

import (
	"fmt"
	"strings"
)

func orDefault(version, fallback string) string {
	if version != "" {
		return version
	}

	return fallback
}

func zlib(version string) *Library {
	version = orDefault(version, "1.2.11")

	return &Library{
		Version:      version,
		Location:     GitHub("madler", "zlib").WithTag("v" + version),
		Recipe:       CMake,
		CompiledName: Matching("libz.*", "zlib*"),
	}
}

func png(version string) *Library {
	version = orDefault(version, "1.6.37")

	return &Library{
		Version:      version,
		Location:     GitHub("glennrp", "libpng").WithTag("v" + version),
		Recipe:       CMake,
		Dependencies: []string{"zlib"},
		CompiledName: Matching("libpng*", "png*"),
		Defines: map[string]string{
			"PNG_TESTS":  "OFF",
			"PNG_STATIC": "OFF",
		},
	}
}

func freetype(version string) *Library {
	version = orDefault(version, "2.10.4")

	return &Library{
		Version:      version,
		Location:     GitHub("freetype", "freetype").WithTag("VER-" + strings.ReplaceAll(version, ".", "-")),
		Recipe:       CMake,
		Dependencies: []string{"png", "zlib"},
		CompiledName: Matching("libfreetype*", "freetype*"),
		Defines: map[string]string{
			"FT_WITH_ZLIB":     "ON",
			"FT_WITH_PNG":      "ON",
			"FT_WITH_BZIP2":    "OFF",
			"FT_WITH_HARFBUZZ": "OFF",
			"FT_WITH_BROTLI":   "OFF",
		},
	}
}

func pixman(version string) *Library {
	version = orDefault(version, "0.40.0")

	return &Library{
		Version:       version,
		Location:      Tarball(fmt.Sprintf("https://cairographics.org/releases/pixman-%s.tar.gz", version), "pixman-"+version),
		Recipe:        Autotools,
		CompiledName:  Matching("libpixman-1*"),
		ConfigureArgs: []string{"--disable-gtk", "--disable-libpng"},
	}
}

func cairo(version string) *Library {
	version = orDefault(version, "1.17.4")

	return &Library{
		Version:       version,
		Location:      Tarball(fmt.Sprintf("https://cairographics.org/snapshots/cairo-%s.tar.xz", version), "cairo-"+version),
		Recipe:        Autotools,
		Dependencies:  []string{"pixman", "freetype", "png", "zlib"},
		ConfigureArgs: []string{"--disable-xlib", "--disable-gtk-doc"},
		Env:           map[string]string{"LIBS": "-lbz2"},
	}
}

func ssh2(version string) *Library {
	version = orDefault(version, "1.9.0")

	return &Library{
		Version:      version,
		Location:     GitHub("libssh2", "libssh2").WithTag("libssh2-" + version),
		Recipe:       CMake,
		Dependencies: []string{"zlib"},
		CompiledName: Matching("libssh2*"),
		Defines: map[string]string{
			"CRYPTO_BACKEND":          "OpenSSL",
			"ENABLE_ZLIB_COMPRESSION": "ON",
			"BUILD_EXAMPLES":          "OFF",
			"BUILD_TESTING":           "OFF",
		},
	}
}

func git2(version string) *Library {
	location := GitHub("syrel", "libgit2").WithBranch("v1.1.1-windows-openssl")
	if version != "" {
		location = GitHub("libgit2", "libgit2").WithTag("v" + version)
	}

	return &Library{
		Version:      orDefault(version, "1.1.1"),
		Location:     location,
		Recipe:       CMake,
		Dependencies: []string{"ssh2"},
		CompiledName: Matching("libgit2*", "git2*"),
		Defines: map[string]string{
			"BUILD_CLAR":       "OFF",
			"REGEX_BACKEND":    "builtin",
			"USE_BUNDLED_ZLIB": "ON",
		},
	}
}

func sdl2(version string) *Library {
	version = orDefault(version, "2.0.14")

	return &Library{
		Version:      version,
		Location:     GitHub("libsdl-org", "SDL").WithTag("release-" + version),
		Recipe:       CMake,
		CompiledName: Matching("libSDL2*", "SDL2*"),
		Defines: map[string]string{
			"SDL_TEST":   "OFF",
			"SDL_STATIC": "OFF",
		},
	}
}

// cargoLibrary is a library from a feenkcom repository, pinned to a tag when
// a version is requested and following the default branch otherwise
func cargoLibrary(repo, stem, version string) *Library {
	location := GitHub("feenkcom", repo)
	if version != "" {
		location = location.WithTag("v" + version)
	}

	return &Library{
		Version:  orDefault(version, "latest"),
		Stem:     stem,
		Location: location,
		Recipe:   Cargo,
	}
}

func boxer(version string) *Library {
	return cargoLibrary("gtoolkit-boxer", "Boxer", version)
}

func winit(version string) *Library {
	return cargoLibrary("libwinit", "Winit", version)
}

func clipboard(version string) *Library {
	return cargoLibrary("libclipboard", "Clipboard", version)
}

func process(version string) *Library {
	return cargoLibrary("libprocess", "Process", version)
}

func testLibrary(version string) *Library {
	return &Library{
		Version:  orDefault(version, "0.1.0"),
		Stem:     "test_library",
		Location: PathLocation{Path: "libs/test-library"},
		Recipe:   Cargo,
	}
}
