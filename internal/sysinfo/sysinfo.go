// Package sysinfo enumerates host I2C adapters and HID devices.
package sysinfo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jochenvg/go-udev"
	"github.com/sstallion/go-hid"
)

type Adapter struct {
	Name    string `json:"name"`
	Sysname string `json:"sysname"`
	Devnode string `json:"devnode"`
}

// ListAdapters returns the i2c-dev adapters known to udev.
func ListAdapters() ([]Adapter, error) {
	u := &udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("i2c-dev"); err != nil {
		return nil, fmt.Errorf("failed to match i2c-dev: %w", err)
	}
	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate i2c adapters: %w", err)
	}
	adapters := make([]Adapter, 0, len(devices))
	for _, d := range devices {
		adapters = append(adapters, Adapter{
			Name:    strings.TrimSpace(d.SysattrValue("name")),
			Sysname: d.Sysname(),
			Devnode: d.Devnode(),
		})
	}
	sort.Slice(adapters, func(i, j int) bool {
		return adapters[i].Sysname < adapters[j].Sysname
	})
	return adapters, nil
}

type HIDDevice struct {
	Path      string `json:"path"`
	VendorID  uint16 `json:"vendorId"`
	ProductID uint16 `json:"productId"`
	Interface int    `json:"interface"`
	Name      string `json:"name"`
}

// ListHID enumerates HID devices matching vendorID and productID;
// hid.VendorIDAny and hid.ProductIDAny match everything.
func ListHID(vendorID, productID uint16) ([]HIDDevice, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize hidapi: %w", err)
	}
	defer hid.Exit()
	var devices []HIDDevice
	err := hid.Enumerate(vendorID, productID, func(info *hid.DeviceInfo) error {
		devices = append(devices, HIDDevice{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Interface: info.InterfaceNbr,
			Name:      deviceName(info.MfrStr, info.ProductStr, info.VendorID, info.ProductID),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate hid devices: %w", err)
	}
	return devices, nil
}

func deviceName(mfr, product string, vendorID, productID uint16) string {
	var parts []string
	if mfr != "" {
		parts = append(parts, mfr)
	}
	if product != "" {
		parts = append(parts, product)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%04x:%04x", vendorID, productID)
	}
	return strings.Join(parts, " ")
}
