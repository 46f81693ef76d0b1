package s3

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

func TestMultipartETag(t *testing.T) {
	p1 := md5.Sum([]byte("part one"))
	p2 := md5.Sum([]byte("part two"))

	concat := append(append([]byte{}, p1[:]...), p2[:]...)
	sum := md5.Sum(concat)
	want := hex.EncodeToString(sum[:]) + "-2"

	if got := MultipartETag([][]byte{p1[:], p2[:]}); got != want {
		t.Errorf("MultipartETag = %q, want %q", got, want)
	}
}

func TestIsMD5ETag(t *testing.T) {
	tests := []struct {
		etag string
		want bool
	}{
		{`"5d41402abc4b2a76b9719d911017c592"`, true},
		{"5d41402abc4b2a76b9719d911017c592-12", true},
		{"5D41402ABC4B2A76B9719D911017C592", true},
		{"not-an-md5", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMD5ETag(tt.etag); got != tt.want {
			t.Errorf("IsMD5ETag(%q) = %v, want %v", tt.etag, got, tt.want)
		}
	}
}

func TestQuoteETag(t *testing.T) {
	if got := QuoteETag(`"abc"`); got != `"abc"` {
		t.Errorf("QuoteETag(quoted) = %q", got)
	}
	if got := QuoteETag("abc"); got != `"abc"` {
		t.Errorf("QuoteETag(bare) = %q", got)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, ErrNotFound},
		{"api precondition", &smithy.GenericAPIError{Code: "PreconditionFailed"}, ErrPreconditionFailed},
		{"http 404", &smithyhttp.ResponseError{Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 404}}, Err: errors.New("head")}, ErrNotFound},
		{"http 412", &smithyhttp.ResponseError{Response: &smithyhttp.Response{Response: &http.Response{StatusCode: 412}}, Err: errors.New("delete")}, ErrPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(fmt.Errorf("op: %w", tt.err))
			if !errors.Is(got, tt.want) {
				t.Errorf("translate = %v, want %v", got, tt.want)
			}
		})
	}
	if translate(nil) != nil {
		t.Error("translate(nil) should be nil")
	}
	other := errors.New("boom")
	if got := translate(other); got != other {
		t.Errorf("translate(other) = %v", got)
	}
}
