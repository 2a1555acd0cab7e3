package agent

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens a microcontroller port, 8N1
func OpenSerial(portPath string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portPath, err)
	}
	return port, nil
}

// ListPorts returns the serial ports present on the host
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
