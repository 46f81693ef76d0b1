package s3

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var md5ETagRe = regexp.MustCompile(`^[0-9a-f]{32}(-[0-9]+)?$`)

func TrimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

func QuoteETag(etag string) string {
	return `"` + TrimETag(etag) + `"`
}

// IsMD5ETag reports whether etag has the shape S3 uses for MD5-based ETags,
// either a plain digest or the multipart "<digest>-<parts>" form. SSE-KMS and
// SSE-C objects carry opaque ETags that fail this check.
func IsMD5ETag(etag string) bool {
	return md5ETagRe.MatchString(strings.ToLower(TrimETag(etag)))
}

// MultipartETag computes the ETag S3 assigns to a completed multipart upload:
// the MD5 of the concatenated binary part digests, suffixed with the part count.
func MultipartETag(partMD5s [][]byte) string {
	h := md5.New()
	for _, sum := range partMD5s {
		h.Write(sum)
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(h.Sum(nil)), len(partMD5s))
}

// ContentMD5 encodes a raw MD5 digest for the Content-MD5 header.
func ContentMD5(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}
