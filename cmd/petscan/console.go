package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"petscan/internal/biometry"
	"petscan/internal/camera"
	"petscan/internal/scan"
)

// liveController is the subset of scan.Controller the console drives.
type liveController interface {
	Snapshot() scan.Snapshot
	Subscribe() (<-chan scan.Snapshot, func())
	StartCamera(ctx context.Context, facing camera.Facing) (scan.Snapshot, error)
	SwitchCamera(ctx context.Context) (scan.Snapshot, error)
	StopCamera() scan.Snapshot
	SetScanning(on bool) (scan.Snapshot, error)
	CaptureNow() error
	SelectCandidate(ctx context.Context, petID int64) (scan.Snapshot, error)
	RetryProfile(ctx context.Context) (scan.Snapshot, error)
	Reset() scan.Snapshot
}

const consoleHelp = "keys: [enter]/c capture  s pause/resume  f flip camera  1-9 pick candidate  r retry profile  n new scan  q quit"

// console renders controller snapshots as terminal lines and maps typed
// commands onto controller operations.
type console struct {
	ctrl     liveController
	contact  func(*biometry.Profile) string
	in       io.Reader
	out      io.Writer
	colorize bool
	facing   camera.Facing

	mu          sync.Mutex
	lastStatus  scan.Status
	lastCands   []int64
	shownGen    uint64
	shownResult bool
}

func newConsole(ctrl liveController, contact func(*biometry.Profile) string, in io.Reader, out io.Writer, facing camera.Facing) *console {
	return &console{
		ctrl:     ctrl,
		contact:  contact,
		in:       in,
		out:      out,
		colorize: shouldColorize(out),
		facing:   facing,
	}
}

// run starts the camera with scanning on and processes commands until the
// input ends, q is typed, or ctx is cancelled.
func (c *console) run(ctx context.Context) error {
	updates, unsubscribe := c.ctrl.Subscribe()
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		for snap := range updates {
			c.render(snap)
		}
	}()
	defer func() {
		c.ctrl.StopCamera()
		unsubscribe()
		<-rendered
	}()

	if err := c.begin(ctx); err != nil {
		return err
	}
	c.println(consoleHelp)

	lines := make(chan string)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := c.handle(ctx, strings.TrimSpace(line)); done {
				return nil
			}
		}
	}
}

func (c *console) begin(ctx context.Context) error {
	if _, err := c.ctrl.StartCamera(ctx, c.facing); err != nil {
		return err
	}
	_, err := c.ctrl.SetScanning(true)
	return err
}

func (c *console) handle(ctx context.Context, cmd string) bool {
	var err error
	switch strings.ToLower(cmd) {
	case "q", "quit", "exit":
		return true
	case "", "c":
		err = c.ctrl.CaptureNow()
	case "s":
		snap := c.ctrl.Snapshot()
		_, err = c.ctrl.SetScanning(!snap.Scanning)
	case "f":
		var snap scan.Snapshot
		if snap, err = c.ctrl.SwitchCamera(ctx); err == nil {
			c.facing = snap.Facing
		}
	case "r":
		_, err = c.ctrl.RetryProfile(ctx)
	case "n":
		c.ctrl.Reset()
		err = c.begin(ctx)
	case "h", "?":
		c.println(consoleHelp)
	default:
		err = c.pick(ctx, cmd)
	}
	if err != nil {
		c.println(renderStatusLine("Command", statusWarn, err.Error(), c.colorize))
	}
	return false
}

func (c *console) pick(ctx context.Context, cmd string) error {
	idx, err := strconv.Atoi(cmd)
	if err != nil {
		return fmt.Errorf("unknown command %q (h for help)", cmd)
	}
	candidates := c.ctrl.Snapshot().Candidates
	if idx < 1 || idx > len(candidates) {
		return fmt.Errorf("no candidate %d on screen", idx)
	}
	_, err = c.ctrl.SelectCandidate(ctx, candidates[idx-1].PetID)
	return err
}

func (c *console) render(snap scan.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.Status != c.lastStatus {
		c.lastStatus = snap.Status
		fmt.Fprintln(c.out, renderStatusLine(modeLabel(snap), scanStatusKind(snap.Status.Kind), snap.Status.Text, c.colorize))
	}

	ids := make([]int64, 0, len(snap.Candidates))
	for _, cand := range snap.Candidates {
		ids = append(ids, cand.PetID)
	}
	if len(ids) > 0 && !slices.Equal(ids, c.lastCands) {
		fmt.Fprintln(c.out, candidateTable(snap.Candidates))
	}
	c.lastCands = ids

	if snap.Mode == scan.ModeProfileShown && snap.Profile != nil {
		if !c.shownResult || c.shownGen != snap.Generation {
			c.shownResult = true
			c.shownGen = snap.Generation
			link := ""
			if c.contact != nil {
				link = c.contact(snap.Profile)
			}
			fmt.Fprintln(c.out, strings.Join(profileLines(snap.Profile, snap.Similarity, link, c.colorize), "\n"))
			fmt.Fprintln(c.out, "n new scan, q quit")
		}
	}
}

func (c *console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func modeLabel(snap scan.Snapshot) string {
	switch snap.Mode {
	case scan.ModeLiveCamera:
		if snap.CameraActive {
			return fmt.Sprintf("Live (%s)", snap.Facing)
		}
		return "Live"
	case scan.ModeSinglePhoto:
		return "Photo"
	case scan.ModeProfileShown:
		return "Identified"
	default:
		return "Idle"
	}
}
