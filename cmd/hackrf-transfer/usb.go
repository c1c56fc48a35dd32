package main

import (
	"errors"

	"github.com/google/gousb"

	"github.com/rjboer/gohackrf/hackrf"
)

var errNoDevice = errors.New("no HackRF found")

func isHackRF(desc *gousb.DeviceDesc) bool {
	if desc.Vendor != hackrf.VendorID {
		return false
	}
	switch desc.Product {
	case hackrf.ProductHackRFOne, hackrf.ProductJawbreaker, hackrf.ProductRad1o:
		return true
	}
	return false
}

// openFirst opens the first HackRF on the bus and closes any others found.
func openFirst(usbCtx *gousb.Context) (*gousb.Device, error) {
	devs, err := usbCtx.OpenDevices(isHackRF)
	if len(devs) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, errNoDevice
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}
	return devs[0], nil
}
