package client

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// readBody returns the response body as text, undoing gzip or deflate
// content encoding. Deflate bodies may be zlib-wrapped or raw.
func readBody(resp *http.Response) (string, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("client: gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case "deflate":
		br := bufio.NewReader(resp.Body)
		head, _ := br.Peek(2)
		if len(head) == 2 && head[0]&0x0f == 8 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return "", fmt.Errorf("client: deflate: %w", err)
			}
			defer zr.Close()
			r = zr
		} else {
			fr := flate.NewReader(br)
			defer fr.Close()
			r = fr
		}
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return "", fmt.Errorf("client: read body: %w", err)
	}
	return string(data), nil
}
