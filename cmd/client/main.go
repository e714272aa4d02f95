// Command client is a terminal frontend for the conversation relay. Each
// line typed plays out one push-to-talk exchange: press, transcript,
// release. Answers stream to stdout as they are generated.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lukasbauer/clio/internal/client"
	"github.com/lukasbauer/clio/internal/duplex"
	"github.com/lukasbauer/clio/internal/speech"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	wsURL := getenv("WS_URL", "ws://localhost:8080/ws")

	channel := duplex.New(duplex.Config{
		URL:            wsURL,
		Logger:         logger,
		ReconnectDelay: getenvDuration("RECONNECT_DELAY", duplex.DefaultReconnectDelay),
	})
	queue := speech.NewQueue(speech.Config{
		Synthesizer: &consoleSynth{},
		Logger:      logger,
		ProfileID:   getenv("VOICE_PROFILE", "default"),
	})

	printer := &streamPrinter{}
	var pipe *client.Pipeline
	pipe = client.New(client.Config{
		Channel:  channel,
		Speech:   queue,
		Capture:  &consoleCapture{},
		Logger:   logger,
		OnUpdate: func() { printer.render(pipe) },
	})

	pipe.Start()

	fmt.Printf("Clio — connecting to %s\n", wsURL)
	fmt.Println("Type a question and press enter. /voice <profile> switches voices, /clear resets, /quit exits.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case line == "/quit":
			pipe.Close()
			return

		case line == "/clear":
			pipe.Clear()
			fmt.Println("(conversation cleared)")

		case strings.HasPrefix(line, "/voice "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/voice "))
			queue.SetProfile(id)
			fmt.Printf("(voice profile: %s)\n", speech.ProfileByID(id).Name)

		default:
			if !pipe.Connected() {
				fmt.Println("(not connected yet, retrying in the background)")
				continue
			}
			if pipe.IsGenerating() {
				fmt.Println("(still answering, hold on)")
				continue
			}
			pipe.PressStart()
			pipe.SetTranscript(line)
			pipe.PressRelease()
		}
	}

	pipe.Close()
}

// streamPrinter echoes in-progress answer text incrementally.
type streamPrinter struct {
	mu       sync.Mutex
	printed  int
	thinking bool
}

func (sp *streamPrinter) render(p *client.Pipeline) {
	if p == nil {
		return
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if p.IsThinking() && !sp.thinking {
		fmt.Print("(thinking) ")
	}
	sp.thinking = p.IsThinking()

	cur := p.InProgress()
	if len(cur) > sp.printed {
		fmt.Print(cur[sp.printed:])
		sp.printed = len(cur)
		return
	}
	if cur == "" && sp.printed > 0 {
		fmt.Println()
		sp.printed = 0
	}
}

// consoleCapture satisfies the capture capability; the transcript is fed
// from typed input, so start and stop have nothing to do.
type consoleCapture struct{}

func (consoleCapture) Start()          {}
func (consoleCapture) Stop()           {}
func (consoleCapture) Supported() bool { return true }

// consoleSynth vocalizes to stdout.
type consoleSynth struct{}

func (consoleSynth) Voices() []speech.Voice {
	return []speech.Voice{
		{Name: "Console", Lang: "en-US"},
		{Name: "Console British", Lang: "en-GB"},
	}
}

func (consoleSynth) Speak(text string, voice *speech.Voice, onEnd func(), _ func(error)) {
	name := "Console"
	if voice != nil {
		name = voice.Name
	}
	fmt.Printf("\n[%s] %s\n", name, text)
	onEnd()
}

func (consoleSynth) CancelAll() {}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
