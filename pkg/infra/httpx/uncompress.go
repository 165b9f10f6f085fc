package httpx

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type bodyDecoder func(body []byte) ([]byte, error)

var bodyDecoders = map[string]bodyDecoder{
	"br":      decodeBrotli,
	"gzip":    decodeGzip,
	"zstd":    decodeZstd,
	"deflate": decodeDeflate,
}

// passthrough encodings leave the bytes as they are
var passthroughEncodings = map[string]struct{}{
	"":         {},
	"identity": {},
	"compress": {},
}

// DecodeBody undoes the Content-Encoding chain of an api-call response, the
// last applied encoding first, and reports whether the body changed.
func DecodeBody(header http.Header, body []byte) ([]byte, bool, error) {
	ce := header.Get("Content-Encoding")
	if ce == "" || len(body) == 0 {
		return body, false, nil
	}

	encodings := strings.Split(ce, ",")
	changed := false
	for i := len(encodings) - 1; i >= 0; i-- {
		name := strings.ToLower(strings.TrimSpace(encodings[i]))
		if _, ok := passthroughEncodings[name]; ok {
			continue
		}
		decode, ok := bodyDecoders[name]
		if !ok {
			return nil, false, fmt.Errorf("unsupported content-encoding: %q", encodings[i])
		}
		out, err := decode(body)
		if err != nil {
			return nil, false, fmt.Errorf("failed to decode %s response body: %w", name, err)
		}
		body = out
		changed = true
	}
	return body, changed, nil
}

func decodeBrotli(body []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
}

func decodeGzip(body []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return readAndClose(gr)
}

func decodeZstd(body []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// decodeDeflate accepts zlib-wrapped data and falls back to raw DEFLATE,
// which some servers send despite RFC 9110.
func decodeDeflate(body []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		return readAndClose(zr)
	}
	return readAndClose(flate.NewReader(bytes.NewReader(body)))
}

func readAndClose(rc io.ReadCloser) ([]byte, error) {
	out, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
