// Package link opens the byte stream between the registry and the outside world: a serial
// device on the robot, or stdin/stdout when running on a host.
package link

import (
	"fmt"
	"io"
	"os"

	"go.bug.st/serial"
)

// Stdio is the device name that selects stdin/stdout.
const Stdio = "-"

// Port is an open link.
type Port interface {
	io.ReadWriteCloser
	Name() string
}

// openSerial is swapped in tests.
var openSerial = func(device string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(device, mode)
}

// Mode returns the 8N1 serial mode at the given baud rate.
func Mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens device at baud. Device Stdio returns a port over os.Stdin and os.Stdout whose
// Close leaves both open.
func Open(device string, baud int) (Port, error) {
	if device == Stdio {
		return &stdio{in: os.Stdin, out: os.Stdout}, nil
	}
	if baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d for %s", baud, device)
	}

	rwc, err := openSerial(device, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}
	return &port{ReadWriteCloser: rwc, name: device}, nil
}

// List returns the serial devices present on this host.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

type port struct {
	io.ReadWriteCloser
	name string
}

func (p *port) Name() string { return p.name }

type stdio struct {
	in  io.Reader
	out io.Writer
}

func (s *stdio) Read(b []byte) (int, error)  { return s.in.Read(b) }
func (s *stdio) Write(b []byte) (int, error) { return s.out.Write(b) }
func (s *stdio) Close() error                { return nil }
func (s *stdio) Name() string                { return "stdio" }
