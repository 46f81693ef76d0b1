package archive

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatZip    Format = "zip"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatZip, FormatTarGz, FormatTarZst:
		return f, nil
	case "":
		return FormatZip, nil
	default:
		return "", fmt.Errorf("unknown archive format %q", s)
	}
}

// FormatFromKey infers the format from an archive key suffix.
func FormatFromKey(key string) (Format, error) {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(lower, ".tar.zst"):
		return FormatTarZst, nil
	default:
		return "", fmt.Errorf("cannot infer archive format from %q", key)
	}
}

func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatZip:
		return "application/zip"
	case FormatTarGz:
		return "application/gzip"
	case FormatTarZst:
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}
