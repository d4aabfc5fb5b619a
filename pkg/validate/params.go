package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// DefaultMaxBodyBytes bounds how much of a request body the wrapper will
// buffer for parameter extraction.
const DefaultMaxBodyBytes int64 = 1 << 20 // 1 MiB

// parseParams extracts the request's parameters as a single merged map:
// query string values first, then body values (JSON object or URL-encoded
// form), with body values winning on key collision. The body is buffered
// and restored so the wrapped handler can read it again.
func parseParams(r *http.Request, maxBody int64) (map[string]any, error) {
	params := make(map[string]any)
	mergeValues(params, r.URL.Query())

	if r.Body == nil || r.Body == http.NoBody {
		return params, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBody)
	}

	// Restore the body for the inner handler.
	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) == 0 {
		return params, nil
	}

	mediaType := contentMediaType(r)
	switch mediaType {
	case "application/json":
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decoding JSON body: %w", err)
		}
		for k, v := range decoded {
			params[k] = v
		}

	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("decoding form body: %w", err)
		}
		mergeValues(params, form)
	}

	return params, nil
}

// mergeValues folds url.Values into the param map. Single values become
// strings, repeated keys become string slices.
func mergeValues(params map[string]any, values url.Values) {
	for k, vs := range values {
		switch len(vs) {
		case 0:
		case 1:
			params[k] = vs[0]
		default:
			params[k] = append([]string(nil), vs...)
		}
	}
}

// contentMediaType returns the request's media type without parameters,
// or "" when the Content-Type header is absent or malformed.
func contentMediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mediaType
}
