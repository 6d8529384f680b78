package toolset

import (
	"fmt"
	"path"
	"runtime"
	"sort"
)

// Host describes the per-platform facts needed to find or fetch an NDK.
type Host struct {
	OS  string
	Tag string

	// HomeNDK is the conventional NDK location relative to the home directory.
	HomeNDK []string
	// HomeSDK is the conventional Android SDK location relative to the home directory.
	HomeSDK []string

	ArchiveURL string

	archiverExt string
	linkerExt   string
}

const ndkRelease = "r21b"

var hosts = map[string]Host{
	"linux": {
		OS:         "linux",
		Tag:        "linux-x86_64",
		HomeNDK:    []string{"tools", "Android", "sdk", "ndk-bundle"},
		HomeSDK:    []string{"tools", "Android", "sdk"},
		ArchiveURL: archiveURL("linux-x86_64"),
	},
	"darwin": {
		OS:         "darwin",
		Tag:        "darwin-x86_64",
		HomeNDK:    []string{"Library", "Android", "sdk", "ndk-bundle"},
		HomeSDK:    []string{"Library", "Android", "sdk"},
		ArchiveURL: archiveURL("darwin-x86_64"),
	},
	"windows": {
		OS:          "windows",
		Tag:         "windows-x86_64",
		HomeNDK:     []string{"AppData", "Local", "Android", "Sdk", "ndk-bundle"},
		HomeSDK:     []string{"AppData", "Local", "Android", "Sdk"},
		ArchiveURL:  archiveURL("windows-x86_64"),
		archiverExt: ".exe",
		linkerExt:   ".cmd",
	},
}

func archiveURL(tag string) string {
	return fmt.Sprintf("https://dl.google.com/android/repository/android-ndk-%s-%s.zip", ndkRelease, tag)
}

// toolDefinitions lists, per triple, the binutils prefix and the clang
// wrapper prefix (which carries the minimum API level).
var toolDefinitions = map[Triple]struct {
	binutils string
	clang    string
}{
	Aarch64: {binutils: "aarch64-linux-android", clang: "aarch64-linux-android21"},
	Armv7:   {binutils: "arm-linux-androideabi", clang: "armv7a-linux-androideabi16"},
	I686:    {binutils: "i686-linux-android", clang: "i686-linux-android16"},
	X86_64:  {binutils: "x86_64-linux-android", clang: "x86_64-linux-android21"},
}

// HostFor returns the host descriptor for a GOOS value.
func HostFor(goos string) (Host, bool) {
	h, ok := hosts[goos]
	return h, ok
}

// CurrentHost returns the descriptor of the running platform.
func CurrentHost() (Host, error) {
	h, ok := HostFor(runtime.GOOS)
	if !ok {
		return Host{}, fmt.Errorf("unsupported host platform %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	return h, nil
}

// KnownTriples returns every supported triple in sorted order.
func KnownTriples() []Triple {
	triples := make([]Triple, 0, len(toolDefinitions))
	for t := range toolDefinitions {
		triples = append(triples, t)
	}
	sort.Slice(triples, func(i, j int) bool { return triples[i] < triples[j] })
	return triples
}

// TemplatesFor returns the archiver/linker templates of every triple for host.
func TemplatesFor(host Host) map[Triple]Template {
	bin := path.Join("toolchains", "llvm", "prebuilt", host.Tag, "bin")
	templates := make(map[Triple]Template, len(toolDefinitions))
	for triple, def := range toolDefinitions {
		templates[triple] = Template{
			Archiver: path.Join(bin, def.binutils+"-ar"+host.archiverExt),
			Linker:   path.Join(bin, def.clang+"-clang"+host.linkerExt),
		}
	}
	return templates
}

// TemplatesForHost returns the templates for the running platform. Unsupported
// platforms get an empty map.
func TemplatesForHost() map[Triple]Template {
	host, err := CurrentHost()
	if err != nil {
		return map[Triple]Template{}
	}
	return TemplatesFor(host)
}

// SortedTriples returns the keys of templates in sorted order.
func SortedTriples(templates map[Triple]Template) []Triple {
	triples := make([]Triple, 0, len(templates))
	for t := range templates {
		triples = append(triples, t)
	}
	sort.Slice(triples, func(i, j int) bool { return triples[i] < triples[j] })
	return triples
}
