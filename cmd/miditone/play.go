package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/spf13/cobra"

	"github.com/cbegin/miditone"
	"github.com/cbegin/miditone/internal/instrument"
)

const (
	windowW = 520
	windowH = 200
)

var (
	sampleRate     int
	volume         float64
	polyphonyCap   int
	instrumentFile string
	quiet          bool
)

var playCmd = &cobra.Command{
	Use:   "play <path-to-smf>",
	Short: "Play a Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().IntVar(&sampleRate, "sample-rate", 48000, "output sample rate")
	playCmd.Flags().Float64Var(&volume, "volume", 1.0, "master volume scalar")
	playCmd.Flags().IntVar(&polyphonyCap, "polyphony-cap", 0, "cross-channel voice ceiling (0 = default)")
	playCmd.Flags().StringVar(&instrumentFile, "instruments", "", "path to a TOML instrument override file")
	playCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress structured logging")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	path := args[0]

	var logger *slog.Logger
	if !quiet {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	opts := []miditone.PlayerOption{
		miditone.WithSampleRate(sampleRate),
		miditone.WithLogger(logger),
	}
	if polyphonyCap > 0 {
		opts = append(opts, miditone.WithPolyphonyCap(polyphonyCap))
	}
	if instrumentFile != "" {
		set, err := instrument.Load(instrumentFile)
		if err != nil {
			return fmt.Errorf("miditone: %w", err)
		}
		opts = append(opts, miditone.WithInstrumentOverrides(set))
	}

	pl, err := miditone.NewPlayer(opts...)
	if err != nil {
		return fmt.Errorf("miditone: initializing synthesizer: %w", err)
	}
	defer pl.Close()

	pl.SetMasterVolume(float32(volume))
	if err := pl.Play(path); err != nil {
		return fmt.Errorf("miditone: %w", err)
	}

	g := newGame(pl, path)
	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle(fmt.Sprintf("miditone - %s", path))
	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("miditone: %w", err)
	}
	return nil
}

// game is the minimal status window the CLI drives: it reflects
// playback state and handles Space (pause/resume), Escape (quit), and
// R (restart). Grounded on the teacher's play_mml_ui ebiten.Game shape,
// trimmed of its file navigator, editor, and spectrum/oscilloscope
// visualizer panels.
type game struct {
	player *miditone.Player
	path   string
	events <-chan miditone.PlaybackEvent

	paused bool
	status string
}

func newGame(player *miditone.Player, path string) *game {
	return &game{
		player: player,
		path:   path,
		events: player.Watch(),
		status: "Playing",
	}
}

func (g *game) Update() error {
	g.pollEvents()

	if ebiten.IsWindowBeingClosed() {
		g.player.Stop()
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.player.Stop()
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.restart()
	}
	return nil
}

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Type {
			case miditone.EventFinished:
				g.status = "Finished"
			case miditone.EventStopped:
				g.status = "Stopped"
			case miditone.EventStarted:
				g.paused = false
				g.status = "Playing"
			}
		default:
			return
		}
	}
}

func (g *game) togglePause() {
	if g.paused {
		g.player.Resume()
		g.paused = false
		g.status = "Playing"
	} else {
		g.player.Pause()
		g.paused = true
		g.status = "Paused"
	}
}

func (g *game) restart() {
	g.player.Stop()
	g.player.Reset()
	if err := g.player.Play(g.path); err != nil {
		g.status = fmt.Sprintf("Error: %v", err)
		return
	}
	g.paused = false
	g.status = "Playing"
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{16, 16, 24, 255})
	stats := g.player.Statistics()
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"miditone\n\nfile:   %s\nstatus: %s\n\nsamples: %d\nfailed:  %d\nload:    %.2f\n\nSpace: pause/resume  R: restart  Esc: quit",
		g.path, g.status, stats.SamplesRendered, stats.FailedSamples, stats.LoadAverage,
	))
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, windowH
}
