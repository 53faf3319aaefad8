// Package download retrieves media payloads from the gateway, using a
// CDN fast path for images and a segmented chunk protocol otherwise.
package download

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wxpipe/wxpipe/internal/gateway"
	"github.com/wxpipe/wxpipe/internal/xmltree"
)

// chunkSize is the fixed segment length of the chunk protocol.
const chunkSize = 256 * 256

// Caller is the gateway surface the retriever needs.
type Caller interface {
	Call(ctx context.Context, op string, body map[string]any) (map[string]any, error)
	AccountID() string
}

// Result is one retrieved payload. Path is set when a save directory
// is configured; otherwise Data holds the bytes in memory.
type Result struct {
	Name string
	Path string
	Data []byte
}

// Retriever downloads image and file attachments described by a parsed
// message payload tree.
type Retriever struct {
	logger   *slog.Logger
	caller   Caller
	imageDir string
	fileDir  string
}

func NewRetriever(log *slog.Logger, caller Caller, imageDir, fileDir string) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		logger:   log.With(slog.String("component", "download")),
		caller:   caller,
		imageDir: imageDir,
		fileDir:  fileDir,
	}
}

// FetchImage retrieves an image message's payload. The CDN path is
// tried first; any CDN failure falls back to the chunk protocol.
func (r *Retriever) FetchImage(ctx context.Context, msgID int64, fromID string, tree xmltree.Tree) (Result, error) {
	info := tree.Child("msg", "img")
	if info == nil {
		return Result{}, fmt.Errorf("download image: payload has no img node")
	}
	name := attachmentName("", info.Text("md5"), "png")

	if res, ok := r.cached(r.imageDir, name); ok {
		return res, nil
	}

	if data, ok := r.fetchCDN(ctx, info); ok {
		return r.finish(r.imageDir, name, data)
	}

	data, err := r.fetchChunked(ctx, imageTarget{msgID: msgID, fromID: fromID}, parsedLength(info.Text("length")))
	if err != nil {
		return Result{}, fmt.Errorf("download image: %w", err)
	}
	return r.finish(r.imageDir, name, data)
}

// FetchFile retrieves a file-attachment message's payload.
func (r *Retriever) FetchFile(ctx context.Context, tree xmltree.Tree) (Result, error) {
	info := tree.Child("msg", "appmsg")
	if info == nil {
		return Result{}, fmt.Errorf("download file: payload has no appmsg node")
	}
	name := attachmentName(info.Text("title"), info.Text("md5"), "")

	if res, ok := r.cached(r.fileDir, name); ok {
		return res, nil
	}

	target := fileTarget{
		appID:    info.Text("appid"),
		attachID: info.Text("appattach", "attachid"),
	}
	data, err := r.fetchChunked(ctx, target, parsedLength(info.Text("appattach", "totallen")))
	if err != nil {
		return Result{}, fmt.Errorf("download file: %w", err)
	}
	return r.finish(r.fileDir, name, data)
}

// attachmentName picks the declared title, else "<md5>.<ext>", else a
// second-resolution timestamp stand-in for the md5.
func attachmentName(title, md5, ext string) string {
	if title != "" {
		return title
	}
	if md5 == "" {
		md5 = time.Now().Format("20060102150405")
	}
	return strings.TrimSuffix(md5+"."+ext, ".")
}

func parsedLength(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func (r *Retriever) cached(dir, name string) (Result, bool) {
	if dir == "" {
		return Result{}, false
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		r.logger.Debug("attachment already present", slog.String("path", path))
		return Result{Name: name, Path: path}, true
	}
	return Result{}, false
}

func (r *Retriever) finish(dir, name string, data []byte) (Result, error) {
	if dir == "" {
		return Result{Name: name, Data: data}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", path, err)
	}
	return Result{Name: name, Path: path}, nil
}

// fetchCDN attempts the image CDN path. It never fails the download:
// a false return means the caller should fall back to chunks.
func (r *Retriever) fetchCDN(ctx context.Context, info xmltree.Tree) ([]byte, bool) {
	aesKey := info.Text("aeskey")
	cdnURL := firstNonEmpty(
		info.Text("cdnbigimgurl"),
		info.Text("cdnmidimgurl"),
		info.Text("cdnthumburl"),
	)
	if aesKey == "" || cdnURL == "" {
		return nil, false
	}

	resp, err := r.caller.Call(ctx, gateway.OpCDNImage, map[string]any{
		"FileAesKey": aesKey,
		"FileNo":     cdnURL,
		"Wxid":       r.caller.AccountID(),
	})
	if err != nil {
		r.logger.Debug("cdn path failed, falling back to chunks", slog.Any("error", err))
		return nil, false
	}

	encoded := xmltree.Tree(resp).Text("Data", "Image")
	data, err := decodeBase64(encoded)
	if err != nil || len(data) == 0 {
		r.logger.Debug("cdn payload unusable, falling back to chunks", slog.Any("error", err))
		return nil, false
	}
	return data, true
}

// target describes the per-kind request shape of the chunk protocol.
type target interface {
	op() string
	// payload builds a chunk request. A negative dataLen means omit the
	// total length, which asks the gateway to report it.
	payload(accountID string, dataLen, sectionLen, startPos int) map[string]any
}

type imageTarget struct {
	msgID  int64
	fromID string
}

func (t imageTarget) op() string { return gateway.OpDownloadImage }

func (t imageTarget) payload(accountID string, dataLen, sectionLen, startPos int) map[string]any {
	body := map[string]any{
		"CompressType": 0,
		"MsgId":        t.msgID,
		"Section": map[string]any{
			"DataLen":  sectionLen,
			"StartPos": startPos,
		},
		"Wxid":   accountID,
		"ToWxid": t.fromID,
	}
	if dataLen >= 0 {
		body["DataLen"] = dataLen
	}
	return body
}

type fileTarget struct {
	appID    string
	attachID string
}

func (t fileTarget) op() string { return gateway.OpDownloadFile }

func (t fileTarget) payload(accountID string, dataLen, sectionLen, startPos int) map[string]any {
	body := map[string]any{
		"AppID":    t.appID,
		"AttachId": t.attachID,
		"Section": map[string]any{
			"DataLen":  sectionLen,
			"StartPos": startPos,
		},
		"UserName": "",
		"Wxid":     accountID,
	}
	if dataLen >= 0 {
		body["DataLen"] = dataLen
	}
	return body
}

// fetchChunked runs the segmented protocol: fixed-size sections,
// base64 chunk bodies, and a single length-discovery probe when the
// first chunk comes back without a buffer.
func (r *Retriever) fetchChunked(ctx context.Context, t target, dataLen int) ([]byte, error) {
	session := uuid.NewString()
	log := r.logger.With(slog.String("session", session), slog.String("op", t.op()))

	totalChunks := int(math.Ceil(float64(dataLen) / chunkSize))
	if totalChunks < 1 {
		totalChunks = 1
	}
	chunkIndex := 1
	startPos := 0
	sectionLen := min(chunkSize, dataLen)
	probed := false

	buf := make([]byte, 0, dataLen)
	for {
		log.Debug("request chunk",
			slog.Int("chunk", chunkIndex),
			slog.Int("total", totalChunks),
			slog.Int("start", startPos),
			slog.Int("len", sectionLen),
		)

		resp, err := r.caller.Call(ctx, t.op(), t.payload(r.caller.AccountID(), dataLen, sectionLen, startPos))
		if err != nil {
			return nil, err
		}

		encoded := xmltree.Tree(resp).Text("Data", "data", "buffer")
		if encoded == "" {
			if chunkIndex != 1 {
				return nil, fmt.Errorf("chunk %d/%d: response has no buffer", chunkIndex, totalChunks)
			}
			if probed {
				return nil, fmt.Errorf("no buffer after length probe")
			}
			probed = true

			// Length-discovery probe: re-request the first section
			// without the total length and adopt the reported one.
			probe, err := r.caller.Call(ctx, t.op(), t.payload(r.caller.AccountID(), -1, chunkSize, 0))
			if err != nil {
				return nil, fmt.Errorf("length probe: %w", err)
			}
			total, ok := numericField(probe, "Data", "totalLen")
			if !ok {
				return nil, fmt.Errorf("length probe reported no total length")
			}
			dataLen = total
			totalChunks = int(math.Ceil(float64(dataLen) / chunkSize))
			if totalChunks < 1 {
				totalChunks = 1
			}
			sectionLen = min(chunkSize, dataLen)
			log.Debug("adopted probed length", slog.Int("data_len", dataLen), slog.Int("total", totalChunks))
			continue
		}

		chunk, err := decodeBase64(encoded)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: decode: %w", chunkIndex, totalChunks, err)
		}
		buf = append(buf, chunk...)

		if chunkIndex == totalChunks {
			break
		}
		chunkIndex++
		startPos = chunkSize * (chunkIndex - 1)
		sectionLen = min(chunkSize, dataLen-startPos)
	}

	if dataLen > 0 && len(buf) != dataLen {
		return nil, fmt.Errorf("assembled %d bytes, declared %d", len(buf), dataLen)
	}
	return buf, nil
}

// decodeBase64 tolerates a data-URI style "<header>,<payload>" prefix.
func decodeBase64(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

// numericField reads a JSON number at the path, tolerating float64 and
// string encodings.
func numericField(m map[string]any, path ...string) (int, bool) {
	node := any(m)
	for _, key := range path {
		next, ok := node.(map[string]any)
		if !ok {
			return 0, false
		}
		node, ok = next[key]
		if !ok {
			return 0, false
		}
	}
	switch v := node.(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
