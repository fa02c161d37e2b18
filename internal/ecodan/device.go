package ecodan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/energy"
	"codeberg.org/mutker/ecodanctl/internal/errors"
	"codeberg.org/mutker/ecodanctl/internal/logger"
)

// Device exposes named, scaled readings and validated setpoint writes on top
// of a Transport. The lock is held around each register operation only, so a
// setpoint write interleaves with a running poll instead of waiting for it.
type Device struct {
	transport Transport
	mu        sync.Mutex
	logger    logger.Logger
}

func NewDevice(t Transport, log logger.Logger) *Device {
	if log == nil {
		log = logger.With("ecodan")
	}
	return &Device{
		transport: t,
		logger:    log,
	}
}

func (d *Device) readRegister(ctx context.Context, addr uint16) (uint16, error) {
	errFactory := errors.New()
	if err := ctx.Err(); err != nil {
		return 0, errFactory.Wrap(ErrTransport, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.transport.ReadRegister(addr)
	if err != nil {
		return 0, errFactory.WithData(ErrTransport, struct {
			Register uint16
			Error    string
		}{
			Register: addr,
			Error:    err.Error(),
		})
	}

	return v, nil
}

func (d *Device) writeRegister(ctx context.Context, addr, value uint16) error {
	errFactory := errors.New()
	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrTransport, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.transport.WriteRegister(addr, value); err != nil {
		return errFactory.WithData(ErrTransport, struct {
			Register uint16
			Error    string
		}{
			Register: addr,
			Error:    err.Error(),
		})
	}

	return nil
}

// Read returns an instantaneous Measurement.
func (d *Device) Read(ctx context.Context, q Quantity) (Measurement, error) {
	reg, ok := quantityRegisters[q]
	if !ok {
		return Measurement{}, errors.New().WithMessage(ErrUnknownRegister, fmt.Sprintf("no register for quantity %d", q))
	}

	raw, err := d.readRegister(ctx, reg.addr)
	if err != nil {
		return Measurement{}, err
	}

	return Measurement{Value: reg.decode(raw), Unit: reg.unit}, nil
}

// Status returns a coded status with its description.
func (d *Device) Status(ctx context.Context, k StatusKind) (CodedStatus, error) {
	addr, ok := statusRegisters[k]
	if !ok {
		return CodedStatus{}, errors.New().WithMessage(ErrUnknownRegister, fmt.Sprintf("no register for status %d", k))
	}

	raw, err := d.readRegister(ctx, addr)
	if err != nil {
		return CodedStatus{}, err
	}

	code := int(raw)
	return CodedStatus{Code: code, Description: Describe(k, code)}, nil
}

// Energy returns the daily counter of a stream together with the date the
// controller attributes it to.
func (d *Device) Energy(ctx context.Context, s Stream) (EnergySnapshot, error) {
	errFactory := errors.New()
	regs, ok := streamRegisters[s]
	if !ok {
		return EnergySnapshot{}, errFactory.WithMessage(ErrUnknownRegister, fmt.Sprintf("no registers for stream %d", s))
	}

	addrs := []uint16{regs.kwh, regs.wh, regs.date[0], regs.date[1], regs.date[2]}
	raw := make([]uint16, len(addrs))
	for i, addr := range addrs {
		v, err := d.readRegister(ctx, addr)
		if err != nil {
			return EnergySnapshot{}, err
		}
		raw[i] = v
	}

	date, err := energy.NewDate(energyYearOffset+int(raw[2]), time.Month(raw[3]), int(raw[4]))
	if err != nil {
		return EnergySnapshot{}, errFactory.WithData(ErrMalformed, struct {
			Stream string
			Error  string
		}{
			Stream: s.String(),
			Error:  err.Error(),
		})
	}

	return EnergySnapshot{
		Value: float64(raw[0]) + float64(raw[1])*energyFractionScale,
		Unit:  UnitKWh,
		Date:  date,
	}, nil
}

// SetTarget validates value against the setpoint's range and writes it.
// Out-of-range values never reach the transport.
func (d *Device) SetTarget(ctx context.Context, t Target, value float64) error {
	errFactory := errors.New()
	def, ok := targets[t]
	if !ok {
		return errFactory.WithMessage(ErrInvalidTarget, fmt.Sprintf("unknown target %d", t))
	}

	if !def.limits.Contains(value) {
		return errFactory.WithMessage(ErrInvalidTarget,
			fmt.Sprintf("Value must be between %g and %g (inclusive).", def.limits.Min, def.limits.Max))
	}

	reg := quantityRegisters[def.quantity]
	if err := d.writeRegister(ctx, reg.addr, reg.encode(value)); err != nil {
		return err
	}

	d.logger.Info().
		Str("target", def.name).
		Float64("value", value).
		Msg("Setpoint written")

	return nil
}

// Close releases the underlying transport.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.transport.Close(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownBus, err)
	}
	return nil
}
