// Package codec holds the fixed codec translation tables shared by the
// directory client and the prober.
package codec

// Ext is the file extension used to name an audio format downstream.
type Ext string

const (
	MP3 Ext = "mp3"
	AAC Ext = "aac"
	OGG Ext = "ogg"

	// Unknown marks a codec that has not been determined yet. The prober
	// resolves it from the stream itself.
	Unknown Ext = "UNKNOWN"
)

// Supported lists the terminal extensions a session may settle on.
var Supported = []Ext{MP3, AAC, OGG}

// probeTable translates codec names reported by the inspection tool.
var probeTable = map[string]Ext{
	"mp3":    MP3,
	"aac":    AAC,
	"vorbis": OGG,
}

// directoryTable translates codec names reported by the station directory.
var directoryTable = map[string]Ext{
	"MP3":  MP3,
	"AAC":  AAC,
	"AAC+": AAC,
	"OGG":  OGG,
	"HLS":  AAC,
}

// FromProbe returns the extension for a codec reported by the inspection
// tool, or false when the codec is not in the table.
func FromProbe(name string) (Ext, bool) {
	ext, ok := probeTable[name]
	return ext, ok
}

// FromDirectory returns the extension for a codec reported by the station
// directory, or false when the codec is not in the table.
func FromDirectory(name string) (Ext, bool) {
	ext, ok := directoryTable[name]
	return ext, ok
}

// IsSupported reports whether ext is one of the terminal extensions.
func IsSupported(ext Ext) bool {
	for _, s := range Supported {
		if s == ext {
			return true
		}
	}
	return false
}

func (e Ext) String() string { return string(e) }
