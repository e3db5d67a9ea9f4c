// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// multipart.go - Page content PATCH body carrying a diagram image.
//
// The OneNote content endpoint expects a multipart/form-data body with a
// "Commands" JSON part followed by the binary parts it references. The layout
// is written by hand rather than with mime/multipart so the byte sequence is
// fixed:
//
//   --B\r\n
//   Content-Disposition: form-data; name="Commands"\r\n
//   Content-Type: application/json\r\n
//   \r\n
//   [{"target":"body","action":"append","content":"<img .../>"}]\r\n
//   --B\r\n
//   Content-Disposition: form-data; name="diagramImage"\r\n
//   Content-Type: image/jpeg\r\n
//   Content-Transfer-Encoding: binary\r\n
//   \r\n
//   <image bytes>\r\n
//   --B--\r\n

package publish

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gebl/onenote-diagram-server/internal/render"
)

const (
	boundaryPrefix = "DiagramBoundary"
	imagePartName  = "diagramImage"
	commandsPart   = "Commands"
	crlf           = "\r\n"

	maxBoundaryAttempts = 8
)

// Multipart is an encoded PATCH body and the boundary it is delimited by.
type Multipart struct {
	Boundary string
	Body     []byte
}

// ContentType is the header value declaring the body's boundary.
func (m *Multipart) ContentType() string {
	return "multipart/form-data; boundary=" + m.Boundary
}

// command is one entry of the OneNote page update command set.
type command struct {
	Target  string `json:"target"`
	Action  string `json:"action"`
	Content string `json:"content"`
}

// newBoundary returns a token unique per call: a time prefix plus random bits.
var newBoundary = func() string {
	id := uuid.New()
	return boundaryPrefix + strconv.FormatInt(time.Now().UnixNano(), 10) + strings.ReplaceAll(id.String()[:13], "-", "")
}

// BuildMultipart assembles the body that appends artifact to a page.
func BuildMultipart(title string, artifact *render.Artifact) (*Multipart, error) {
	if artifact == nil || len(artifact.Bytes) == 0 {
		return nil, errors.New("artifact is empty")
	}
	mediaType := artifact.MediaType
	if mediaType == "" {
		mediaType = render.MediaTypeJPEG
	}

	commands, err := encodeCommands(title)
	if err != nil {
		return nil, err
	}

	boundary, err := pickBoundary(artifact.Bytes)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(artifact.Bytes) + len(commands) + 6*len(boundary) + 256)

	buf.WriteString("--" + boundary + crlf)
	buf.WriteString(`Content-Disposition: form-data; name="` + commandsPart + `"` + crlf)
	buf.WriteString("Content-Type: application/json" + crlf)
	buf.WriteString(crlf)
	buf.Write(commands)
	buf.WriteString(crlf)

	buf.WriteString("--" + boundary + crlf)
	buf.WriteString(`Content-Disposition: form-data; name="` + imagePartName + `"` + crlf)
	buf.WriteString("Content-Type: " + mediaType + crlf)
	buf.WriteString("Content-Transfer-Encoding: binary" + crlf)
	buf.WriteString(crlf)
	buf.Write(artifact.Bytes)
	buf.WriteString(crlf)

	buf.WriteString("--" + boundary + "--" + crlf)

	return &Multipart{Boundary: boundary, Body: buf.Bytes()}, nil
}

// encodeCommands renders the command set without HTML escaping so the <img>
// markup reaches the store as written.
func encodeCommands(title string) ([]byte, error) {
	img := fmt.Sprintf(`<img src="name:%s" alt="%s" />`, imagePartName, html.EscapeString(title))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]command{{Target: "body", Action: "append", Content: img}}); err != nil {
		return nil, fmt.Errorf("encode commands: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// pickBoundary draws boundaries until one does not occur in the payload.
func pickBoundary(payload []byte) (string, error) {
	for i := 0; i < maxBoundaryAttempts; i++ {
		b := newBoundary()
		if !bytes.Contains(payload, []byte(b)) {
			return b, nil
		}
	}
	return "", errors.New("could not generate a boundary absent from the image data")
}
