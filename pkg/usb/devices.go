package usb

import (
	"fmt"
	"strconv"

	"github.com/google/gousb"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

type DeviceType int

const (
	Unknown DeviceType = iota
	// HYPSTAR radiometer behind its FTDI serial bridge
	RadiometerBridge
	// Yoctopuce modules (meteo, gps, relay, wake-up) share one vendor id
	Yoctopuce
)

var (
	SupportedDevices = DeviceMap{
		RadiometerBridge: {
			VendorID:  0x0403,
			ProductID: 0x6015,
			Name:      "HYPSTAR FT-X bridge",
		},
		Yoctopuce: {
			VendorID:   0x24e0,
			Name:       "Yoctopuce module",
			AnyProduct: true,
		},
	}
)

type Device struct {
	Name      string
	VendorID  gousb.ID
	ProductID gousb.ID
	// Match on the vendor id only
	AnyProduct bool
}

func (d *Device) String() string {
	if d.AnyProduct {
		return fmt.Sprintf("%s vid: %s", d.Name, d.VendorID.String())
	}
	return fmt.Sprintf("%s pid: %s vid: %s", d.Name, d.ProductID.String(), d.VendorID.String())
}

func (d *Device) matches(vendorID gousb.ID, productID gousb.ID) bool {
	return d.VendorID == vendorID && (d.AnyProduct || d.ProductID == productID)
}

type DeviceMap map[DeviceType]*Device

type DeviceTuple struct {
	*Device
	DeviceType
}

func FindSupportedDeviceTuple(vendorID gousb.ID, productID gousb.ID) (DeviceTuple, bool) {
	for k, device := range SupportedDevices {
		if device.matches(vendorID, productID) {
			return DeviceTuple{DeviceType: k, Device: device}, true
		}
	}
	return DeviceTuple{}, false
}

// Scan enumerates the bus without opening anything and returns the
// supported devices that are attached.
func Scan() (DeviceMap, error) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	found := make(DeviceMap)
	_, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if tuple, ok := FindSupportedDeviceTuple(desc.Vendor, desc.Product); ok {
			found[tuple.DeviceType] = tuple.Device
			log.Info("found supported device", zap.String("device", tuple.Device.String()), zap.Int("bus", desc.Bus), zap.Int("address", desc.Address))
		}
		return false
	})

	return found, err
}

// Require reports a NotFoundError unless the device type is attached
func Require(target DeviceType) error {
	found, err := Scan()
	if err != nil {
		log.Warn("usb enumeration incomplete", zap.Error(err))
	}

	if _, ok := found[target]; !ok {
		name := "unknown device"
		if d, ok := SupportedDevices[target]; ok {
			name = d.String()
		}
		return NewNotFoundError(name + " not attached")
	}

	return nil
}

func ParseHexUINT16(str string) (uint16, error) {
	val, err := strconv.ParseUint(str, 16, 16)
	if err != nil {
		return 0, err
	}

	return uint16(val), nil
}
