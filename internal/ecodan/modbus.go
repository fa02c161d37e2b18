package ecodan

import (
	"encoding/binary"
	"fmt"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/errors"
	"github.com/goburrow/modbus"
)

// RTUConfig describes the serial line to the controller.
type RTUConfig struct {
	Port         string
	BaudRate     int
	SlaveAddress byte
	DataBits     int
	Parity       string
	StopBits     int
	Timeout      time.Duration
}

type rtuTransport struct {
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// NewRTUTransport opens the serial port and returns a Transport reading
// holding registers (function 3) and writing them with function 16.
func NewRTUTransport(cfg RTUConfig) (Transport, error) {
	errFactory := errors.New()

	handler := modbus.NewRTUClientHandler(cfg.Port)
	handler.BaudRate = cfg.BaudRate
	handler.DataBits = cfg.DataBits
	handler.Parity = cfg.Parity
	handler.StopBits = cfg.StopBits
	handler.SlaveId = cfg.SlaveAddress
	handler.Timeout = cfg.Timeout

	if err := handler.Connect(); err != nil {
		return nil, errFactory.WithData(ErrConnectFailed, struct {
			Port  string
			Error string
		}{
			Port:  cfg.Port,
			Error: err.Error(),
		})
	}

	return &rtuTransport{
		handler: handler,
		client:  modbus.NewClient(handler),
	}, nil
}

func (t *rtuTransport) ReadRegister(addr uint16) (uint16, error) {
	b, err := t.client.ReadHoldingRegisters(addr, 1)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("register %d: expected 2 bytes, got %d", addr, len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

func (t *rtuTransport) WriteRegister(addr, value uint16) error {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, value)
	_, err := t.client.WriteMultipleRegisters(addr, 1, b)
	return err
}

func (t *rtuTransport) Close() error {
	return t.handler.Close()
}
