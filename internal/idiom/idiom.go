// Package idiom implements the idiom-guessing side task: images from
// watched senders are downloaded and indexed by md5, answers announced
// in chat name the pending image, and recognized re-posts are answered
// back after a short delay.
package idiom

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/wxpipe/wxpipe/internal/config"
	"github.com/wxpipe/wxpipe/internal/download"
	"github.com/wxpipe/wxpipe/internal/xmltree"
)

// answerDelay spaces the answer from the triggering image.
const answerDelay = 3 * time.Second

var answerPattern = regexp.MustCompile(`【答案】(.*?)\n`)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// Sender sends a text message via the gateway.
type Sender interface {
	SendText(ctx context.Context, toID, text string) error
}

// Fetcher downloads an image message's payload.
type Fetcher interface {
	FetchImage(ctx context.Context, msgID int64, fromID string, tree xmltree.Tree) (download.Result, error)
}

// Game holds the md5 index and the pending unanswered image.
type Game struct {
	logger  *slog.Logger
	sender  Sender
	fetcher Fetcher
	cfg     config.IdiomConfig
	watch   map[string]struct{}

	mu sync.Mutex
	// md5 of an indexed image -> its answer.
	answers map[string]string
	// path of the last downloaded image still waiting for an answer.
	pending string

	now   func() time.Time
	sleep func(time.Duration)
}

func NewGame(log *slog.Logger, sender Sender, fetcher Fetcher, cfg config.IdiomConfig) *Game {
	if log == nil {
		log = slog.Default()
	}
	g := &Game{
		logger:  log.With(slog.String("component", "idiom")),
		sender:  sender,
		fetcher: fetcher,
		cfg:     cfg,
		watch:   make(map[string]struct{}, len(cfg.WatchIDs)),
		answers: make(map[string]string),
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, id := range cfg.WatchIDs {
		g.watch[id] = struct{}{}
	}
	if cfg.Enable {
		g.scan(cfg.ImageDir)
	}
	return g
}

// Watches reports whether the sender participates in the game.
func (g *Game) Watches(senderID string) bool {
	if !g.cfg.Enable {
		return false
	}
	_, ok := g.watch[senderID]
	return ok
}

// HandleText consumes an announced answer: the pending image is
// renamed after it and indexed under its md5.
func (g *Game) HandleText(content string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == "" || !inWindow(g.now(), g.cfg.TextWindow) {
		return
	}
	match := answerPattern.FindStringSubmatch(content)
	if match == nil {
		return
	}
	answer := strings.TrimSpace(match[1])
	if answer == "" {
		return
	}

	dir := filepath.Dir(g.pending)
	target := filepath.Join(dir, answer+".png")
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, fmt.Sprintf("%s%d.png", answer, rand.Intn(100)+1))
	}
	if err := os.Rename(g.pending, target); err != nil {
		g.logger.Error("rename pending image", slog.String("to", target), slog.Any("error", err))
		return
	}
	g.pending = ""

	sum, err := fileMD5(target)
	if err != nil {
		g.logger.Error("hash renamed image", slog.String("path", target), slog.Any("error", err))
		return
	}
	g.answers[sum] = answer
	g.logger.Debug("answer indexed", slog.String("answer", answer), slog.Int("total", len(g.answers)))
}

// HandleImage matches an image against the index. A known image gets
// its answer sent back on configured weekdays; an unknown one is
// downloaded and becomes the pending image.
func (g *Game) HandleImage(ctx context.Context, msgID int64, fromID string, tree xmltree.Tree) {
	if !inWindow(g.now(), g.cfg.ImageWindow) {
		return
	}
	sum := tree.Text("msg", "img", "md5")
	if sum == "" {
		return
	}

	g.mu.Lock()
	answer, known := g.answers[sum]
	if known && answer == "" {
		delete(g.answers, sum)
	}
	g.mu.Unlock()

	if known {
		if answer == "" || !g.onConfiguredWeekday() {
			return
		}
		g.sleep(answerDelay)
		g.logger.Info("sending answer", slog.String("answer", answer))
		if err := g.sender.SendText(ctx, fromID, answer); err != nil {
			g.logger.Error("send answer failed", slog.Any("error", err))
		}
		return
	}

	res, err := g.fetcher.FetchImage(ctx, msgID, fromID, tree)
	if err != nil {
		g.logger.Error("download puzzle image failed", slog.Int64("msg_id", msgID), slog.Any("error", err))
		return
	}
	g.mu.Lock()
	g.pending = res.Path
	g.mu.Unlock()
	g.logger.Debug("puzzle image saved", slog.String("path", res.Path))
}

// onConfiguredWeekday follows time.Weekday numbering (Sunday = 0).
func (g *Game) onConfiguredWeekday() bool {
	day := int(g.now().Weekday())
	for _, d := range g.cfg.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// inWindow checks a [start, end] clock-time window. A window that is
// not a pair means no restriction.
func inWindow(now time.Time, window []string) bool {
	if len(window) != 2 {
		return true
	}
	clock := now.Format("15:04:05")
	return window[0] <= clock && clock <= window[1]
}

// scan indexes existing images: md5 -> answer recovered from the CJK
// characters of the file name.
func (g *Game) scan(dir string) {
	if dir == "" {
		return
	}
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		sum, err := fileMD5(path)
		if err != nil {
			g.logger.Warn("hash image", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if _, dup := g.answers[sum]; dup {
			g.logger.Warn("duplicate image skipped", slog.String("path", path))
			return nil
		}
		g.answers[sum] = chineseName(d.Name())
		count++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		g.logger.Error("scan image directory", slog.String("dir", dir), slog.Any("error", err))
	}
	g.logger.Info("image index built", slog.Int("images", count))
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// chineseName keeps the Han characters (and CJK punctuation) of a file
// name, dropping the extension and everything else.
func chineseName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	for _, r := range base {
		if unicode.Is(unicode.Han, r) || (r >= 0x3000 && r <= 0x303f) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
