package s3

import (
	"path"
	"strings"
)

const (
	ArchivesPrefix  = "archives"
	ManifestsPrefix = "manifests"
	LocksPrefix     = "locks"
)

var archiveExtensions = []string{".tar.gz", ".tar.zst", ".zip"}

func ArchiveObjectKey(yyyy, mm, dd, filename string) string {
	return path.Join(ArchivesPrefix, yyyy, mm, dd, filename)
}

func ManifestKey(yyyy, mm, dd, stem string) string {
	return path.Join(ManifestsPrefix, yyyy, mm, dd, stem+".json")
}

// ManifestKeyForArchive derives the manifest key paired with an archive key.
// It returns "" for keys outside the archives tree.
func ManifestKeyForArchive(archiveKey string) string {
	yyyy, mm, dd, filename := ParseArchiveKey(archiveKey)
	if filename == "" {
		return ""
	}
	return ManifestKey(yyyy, mm, dd, ArchiveStem(filename))
}

// ArchiveKeyForManifest is the inverse of ManifestKeyForArchive given the
// archive extension.
func ArchiveKeyForManifest(manifestKey, ext string) string {
	manifestKey = strings.Trim(manifestKey, "/")
	parts := strings.Split(manifestKey, "/")
	if len(parts) != 5 || parts[0] != ManifestsPrefix || !strings.HasSuffix(parts[4], ".json") {
		return ""
	}
	stem := strings.TrimSuffix(parts[4], ".json")
	return ArchiveObjectKey(parts[1], parts[2], parts[3], stem+ext)
}

func ArchiveStem(filename string) string {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}

func LockKey(name string) string {
	return path.Join(LocksPrefix, name+".lock")
}

func ParseArchiveKey(relativeKey string) (yyyy, mm, dd, filename string) {
	relativeKey = strings.Trim(relativeKey, "/")
	parts := strings.Split(relativeKey, "/")
	if len(parts) != 5 || parts[0] != ArchivesPrefix {
		return "", "", "", ""
	}
	return parts[1], parts[2], parts[3], parts[4]
}
