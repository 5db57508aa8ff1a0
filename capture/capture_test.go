/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package capture

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func mkTCP(t *testing.T, withEth bool, syn, ack bool, src net.IP) []byte {
	t.Helper()
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    src,
		DstIP:    net.IPv4(10, 0, 0, 1).To4(),
	}
	tcp := layers.TCP{
		SrcPort: 54321,
		DstPort: 80,
		SYN:     syn,
		ACK:     ack,
	}
	if err := tcp.SetNetworkLayerForChecksum(&ip); err != nil {
		t.Fatal(err)
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	var err error
	if withEth {
		eth := layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		err = gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp)
	} else {
		err = gopacket.SerializeLayers(buf, opts, &ip, &tcp)
	}
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func mkUDP(t *testing.T, src net.IP) []byte {
	t.Helper()
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    src,
		DstIP:    net.IPv4(10, 0, 0, 1).To4(),
	}
	udp := layers.UDP{SrcPort: 5353, DstPort: 5353}
	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		t.Fatal(err)
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, &eth, &ip, &udp); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeSyn(t *testing.T) {
	d := newDecoder(true)
	data := mkTCP(t, true, true, false, net.IPv4(203, 0, 113, 100).To4())
	src, ok := d.synSource(data)
	if !ok {
		t.Fatal("SYN frame rejected")
	}
	if src != 0xCB007164 {
		t.Fatalf("source %x", src)
	}
}

func TestDecodeRawIP(t *testing.T) {
	d := newDecoder(false)
	data := mkTCP(t, false, true, false, net.IPv4(198, 51, 100, 7).To4())
	src, ok := d.synSource(data)
	if !ok {
		t.Fatal("raw IP SYN rejected")
	}
	if src != 0xC6336407 {
		t.Fatalf("source %x", src)
	}
}

func TestDecodeSkipsSynAck(t *testing.T) {
	d := newDecoder(true)
	if _, ok := d.synSource(mkTCP(t, true, true, true, net.IPv4(1, 2, 3, 4).To4())); ok {
		t.Fatal("SYN-ACK leaked through")
	}
	if _, ok := d.synSource(mkTCP(t, true, false, true, net.IPv4(1, 2, 3, 4).To4())); ok {
		t.Fatal("bare ACK leaked through")
	}
}

func TestDecodeSkipsNonTCP(t *testing.T) {
	d := newDecoder(true)
	if _, ok := d.synSource(mkUDP(t, net.IPv4(1, 2, 3, 4).To4())); ok {
		t.Fatal("UDP frame leaked through")
	}
}

func TestDecodeSkipsMalformed(t *testing.T) {
	d := newDecoder(true)
	if _, ok := d.synSource(nil); ok {
		t.Fatal("empty frame accepted")
	}
	if _, ok := d.synSource([]byte{0x01, 0x02, 0x03}); ok {
		t.Fatal("runt frame accepted")
	}
	full := mkTCP(t, true, true, false, net.IPv4(1, 2, 3, 4).To4())
	if _, ok := d.synSource(full[:20]); ok {
		t.Fatal("truncated frame accepted")
	}
}

func TestDecodeSkipsIPv6(t *testing.T) {
	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip6 := layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolTCP,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	tcp := layers.TCP{SrcPort: 1, DstPort: 80, SYN: true}
	if err := tcp.SetNetworkLayerForChecksum(&ip6); err != nil {
		t.Fatal(err)
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, &eth, &ip6, &tcp); err != nil {
		t.Fatal(err)
	}
	d := newDecoder(true)
	if _, ok := d.synSource(buf.Bytes()); ok {
		t.Fatal("IPv6 frame accepted")
	}
}

func TestDecoderReuse(t *testing.T) {
	// state from a prior decode must not bleed into the next
	d := newDecoder(true)
	if _, ok := d.synSource(mkTCP(t, true, true, false, net.IPv4(9, 9, 9, 9).To4())); !ok {
		t.Fatal("setup decode failed")
	}
	if _, ok := d.synSource(mkUDP(t, net.IPv4(8, 8, 8, 8).To4())); ok {
		t.Fatal("stale TCP state accepted a UDP frame")
	}
	src, ok := d.synSource(mkTCP(t, true, true, false, net.IPv4(7, 7, 7, 7).To4()))
	if !ok || src != 0x07070707 {
		t.Fatalf("decoder wedged after skip: %x %v", src, ok)
	}
}
