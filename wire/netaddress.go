// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
	"net"
	"time"
)

// NetAddress represents a network address for a peer, including the
// services it supports, used in version and addr messages.
type NetAddress struct {
	Timestamp time.Time
	Services  ServiceFlag
	IP        net.IP
	Port      uint16
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP,
// port, and supported services with defaults for the remaining fields.
func NewNetAddressIPPort(ip net.IP, port uint16, services ServiceFlag) *NetAddress {
	return &NetAddress{
		Timestamp: time.Now(),
		Services:  services,
		IP:        ip,
		Port:      port,
	}
}

func readNetAddress(r io.Reader, pver uint32, na *NetAddress, hasTimestamp bool) error {
	var ip [16]byte

	if hasTimestamp {
		ts, err := binarySerializer.Uint32(r, binary.LittleEndian)
		if err != nil {
			return err
		}
		na.Timestamp = time.Unix(int64(ts), 0)
	}

	services, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	na.Services = ServiceFlag(services)

	if _, err := io.ReadFull(r, ip[:]); err != nil {
		return err
	}
	na.IP = net.IP(ip[:]).To16()

	port, err := binarySerializer.Uint16(r, binary.BigEndian)
	if err != nil {
		return err
	}
	na.Port = port
	return nil
}

func writeNetAddress(w io.Writer, pver uint32, na *NetAddress, hasTimestamp bool) error {
	if hasTimestamp {
		if err := binarySerializer.PutUint32(w, binary.LittleEndian, uint32(na.Timestamp.Unix())); err != nil {
			return err
		}
	}

	if err := binarySerializer.PutUint64(w, binary.LittleEndian, uint64(na.Services)); err != nil {
		return err
	}

	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	if _, err := w.Write(ip[:]); err != nil {
		return err
	}

	return binarySerializer.PutUint16(w, binary.BigEndian, na.Port)
}
