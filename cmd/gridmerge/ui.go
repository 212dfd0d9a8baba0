package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"

	"github.com/udisondev/gridmerge/internal/config"
	"github.com/udisondev/gridmerge/internal/game"
	"github.com/udisondev/gridmerge/internal/movement"
	"github.com/udisondev/gridmerge/internal/world"
)

const (
	cellWidth   = 5 // columns per grid cell
	statusLines = 2
)

var (
	styleOutOfRange = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleInRange    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorDarkSlateGray)
	styleToken      = tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorDarkSlateGray).Bold(true)
	stylePlayer     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Background(tcell.ColorDarkSlateGray).Bold(true)
	styleStatus     = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleVictory    = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
)

// errQuit ends the event loop without an error.
var errQuit = errors.New("quit")

// ui renders the visibility window around the player and turns keyboard and
// mouse input into engine calls.
type ui struct {
	screen  tcell.Screen
	engine  *game.Engine
	control *movement.Controller
	buttons *movement.ButtonSource
	sounds  *sounds
	radius  config.ViewRadius

	window    world.Window
	cursor    [2]int32 // lat, lng offset from the player cell
	message   string
	victory   bool
	mouseDown bool // left button held on the previous mouse event
}

func newUI(screen tcell.Screen, engine *game.Engine, control *movement.Controller,
	buttons *movement.ButtonSource, snd *sounds, radius config.ViewRadius) *ui {
	return &ui{
		screen:  screen,
		engine:  engine,
		control: control,
		buttons: buttons,
		sounds:  snd,
		radius:  radius,
		window:  world.EmptyWindow(),
		message: "Arrows/WASD move, hjkl cursor, space or click to act, g gps, r reset, q quit",
	}
}

// Run is the single game loop: terminal events and movement readings are
// applied one at a time.
func (u *ui) Run(ctx context.Context, moves <-chan world.LatLng) error {
	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return // screen finalized
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := u.draw(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case p := <-moves:
			u.applyMove(p)

		case ev := <-events:
			err := u.handle(ctx, ev)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				return err
			}
		}

		if err := u.draw(); err != nil {
			return err
		}
	}
}

func (u *ui) handle(ctx context.Context, ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return u.handleKey(ctx, ev)
	case *tcell.EventMouse:
		u.handleMouse(ev)
	case *tcell.EventResize:
		u.screen.Sync()
	}
	return nil
}

func (u *ui) handleKey(ctx context.Context, ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return errQuit
	case tcell.KeyUp:
		u.move(movement.North)
	case tcell.KeyDown:
		u.move(movement.South)
	case tcell.KeyRight:
		u.move(movement.East)
	case tcell.KeyLeft:
		u.move(movement.West)
	case tcell.KeyEnter:
		u.activate(u.cursorCell())
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return errQuit
		case 'w':
			u.move(movement.North)
		case 's':
			u.move(movement.South)
		case 'd':
			u.move(movement.East)
		case 'a':
			u.move(movement.West)
		case 'k':
			u.shiftCursor(1, 0)
		case 'j':
			u.shiftCursor(-1, 0)
		case 'l':
			u.shiftCursor(0, 1)
		case 'h':
			u.shiftCursor(0, -1)
		case ' ':
			u.activate(u.cursorCell())
		case 'g':
			u.toggleSource(ctx)
		case 'r':
			u.engine.Reset()
			u.cursor = [2]int32{}
			u.victory = false
			u.message = "Game reset"
		}
	}
	return nil
}

func (u *ui) handleMouse(ev *tcell.EventMouse) {
	pressed := ev.Buttons()&tcell.Button1 != 0
	wasPressed := u.mouseDown
	u.mouseDown = pressed
	if !pressed || wasPressed {
		return
	}

	x, y := ev.Position()
	if id, ok := u.cellAt(x, y); ok {
		u.activate(id)
	}
}

func (u *ui) move(d movement.Direction) {
	if u.control.Active() != movement.KindButtons {
		u.message = "Following location feed, press g for buttons"
		return
	}
	u.buttons.Press(d)
}

// applyMove moves the player. A position outside the grid is dropped and
// the player stays put.
func (u *ui) applyMove(p world.LatLng) {
	if err := u.engine.PlayerMoved(p); err != nil {
		slog.Warn("move rejected", "pos", p, "err", err)
		u.message = "Ignored a position outside the map"
	}
}

func (u *ui) toggleSource(ctx context.Context) {
	if err := u.control.Toggle(ctx); err != nil {
		slog.Warn("switching movement source", "err", err)
		u.message = fmt.Sprintf("Cannot switch movement: %v", err)
		return
	}
	u.message = fmt.Sprintf("Movement: %s", u.control.Active())
}

// shiftCursor moves the cursor within the drawn window.
func (u *ui) shiftCursor(dLat, dLng int32) {
	latR, lngR := u.cursorBounds()
	lat := u.cursor[0] + dLat
	lng := u.cursor[1] + dLng
	if lat < -latR || lat > latR || lng < -lngR || lng > lngR {
		return
	}
	u.cursor = [2]int32{lat, lng}
}

// cursorBounds returns how far the cursor may sit from the player cell.
func (u *ui) cursorBounds() (latR, lngR int32) {
	if u.window.IsEmpty() {
		return 0, 0
	}
	return int32((u.window.Rows() - 1) / 2), int32((u.window.Cols() - 1) / 2)
}

func (u *ui) cursorCell() world.CellID {
	return u.engine.PlayerCell().Offset(u.cursor[0], u.cursor[1])
}

func (u *ui) activate(id world.CellID) {
	res := u.engine.ActivateCell(id)
	u.message = res.Message
	if res.Victory {
		u.victory = true
	}
	u.sounds.Play(res)
}

// layout computes the visible window for the current screen size, keeping the
// player centred.
func (u *ui) layout() world.Window {
	w, h := u.screen.Size()
	latR := min(u.radius.Lat, int32((h-statusLines-1)/2))
	lngR := min(u.radius.Lng, int32((w/cellWidth-1)/2))
	if latR < 0 || lngR < 0 {
		return world.EmptyWindow()
	}
	return world.WindowAround(u.engine.PlayerCell(), latR, lngR)
}

// cellAt maps a screen position to the cell drawn there.
func (u *ui) cellAt(x, y int) (world.CellID, bool) {
	if u.window.IsEmpty() || x < 0 || y < 0 {
		return world.CellID{}, false
	}
	row, col := int64(y), int64(x/cellWidth)
	if row >= u.window.Rows() || col >= u.window.Cols() {
		return world.CellID{}, false
	}
	return world.CellID{
		Lat: u.window.Max.Lat - int32(row),
		Lng: u.window.Min.Lng + int32(col),
	}, true
}

// draw migrates the viewport and redraws. A migration error is an internal
// consistency fault and ends the game loop.
func (u *ui) draw() error {
	u.window = u.layout()
	if err := u.engine.ViewportChanged(u.window); err != nil {
		return fmt.Errorf("viewport change: %w", err)
	}
	latR, lngR := u.cursorBounds()
	u.cursor = [2]int32{min(max(u.cursor[0], -latR), latR), min(max(u.cursor[1], -lngR), lngR)}

	u.screen.Clear()

	player := u.engine.PlayerCell()
	cursor := u.cursorCell()

	u.window.ForEach(func(id world.CellID) bool {
		x := int(id.Lng-u.window.Min.Lng) * cellWidth
		y := int(u.window.Max.Lat - id.Lat)

		view := u.engine.QueryCell(id)
		label := view.String()
		style := styleOutOfRange
		if u.engine.InRange(id) {
			style = styleInRange
			if view.Present {
				style = styleToken
			}
		}
		if id == player {
			label = "@" + label
			if !view.Present {
				label = "@"
			}
			style = stylePlayer
		}
		if id == cursor {
			style = style.Reverse(true)
		}

		u.putCell(x, y, label, style)
		return true
	})

	rows := int(u.window.Rows())
	u.putText(0, rows, fmt.Sprintf("Hand: %s   Movement: %s   %s",
		u.engine.Inventory(), u.control.Active(), u.engine.PlayerCell()), styleStatus)
	statusStyle := styleStatus
	if u.victory {
		statusStyle = styleVictory
	}
	u.putText(0, rows+1, u.message, statusStyle)

	u.screen.Show()
	return nil
}

// putCell draws label centred in a cellWidth-wide slot.
func (u *ui) putCell(x, y int, label string, style tcell.Style) {
	runes := []rune(label)
	if len(runes) > cellWidth {
		runes = runes[:cellWidth]
	}
	pad := (cellWidth - len(runes)) / 2
	for i := range cellWidth {
		r := ' '
		if j := i - pad; j >= 0 && j < len(runes) {
			r = runes[j]
		}
		u.screen.SetContent(x+i, y, r, nil, style)
	}
}

func (u *ui) putText(x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		u.screen.SetContent(x+i, y, r, nil, style)
	}
}
