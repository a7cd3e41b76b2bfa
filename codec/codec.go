// Package codec centralizes JSON encoding for coordinate sidecar files and
// mining reports.
//
// Sidecars are an interchange format produced by external patch-extraction
// tooling; changing the default codec never changes the bytes a sidecar must
// contain, only how they are decoded.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured explicitly.
var Default Codec = GoJSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
