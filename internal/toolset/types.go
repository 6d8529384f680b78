package toolset

// Triple identifies a Rust cross-compilation target.
type Triple string

const (
	Aarch64 Triple = "aarch64-linux-android"
	Armv7   Triple = "armv7-linux-androideabi"
	I686    Triple = "i686-linux-android"
	X86_64  Triple = "x86_64-linux-android"
)

// Template holds the archiver and linker locations for one triple, relative
// to an NDK root and separated by forward slashes.
type Template struct {
	Archiver string `json:"ar"`
	Linker   string `json:"linker"`
}

// Resolved is a template bound to a validated NDK root. Values are only
// produced by Bind.
type Resolved struct {
	Triple   Triple `json:"target"`
	Archiver string `json:"ar"`
	Linker   string `json:"linker"`
}
