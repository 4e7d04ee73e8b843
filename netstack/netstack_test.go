package netstack

import (
	"testing"
	"time"

	"github.com/kneto/netkernel/dma"
	"github.com/kneto/netkernel/wire/arp"
	"github.com/kneto/netkernel/wire/ethernet"
	"github.com/kneto/netkernel/wire/ipv4"
	"github.com/kneto/netkernel/wire/udp"
)

// fakeNIC records every frame handed to TxEnqueue, standing in for the
// E1000 driver in these tests.
type fakeNIC struct {
	mac   [6]byte
	sent  [][]byte
}

func (n *fakeNIC) TxEnqueue(payload []byte, wantOffload bool) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	n.sent = append(n.sent, cp)
	return nil
}

func (n *fakeNIC) HardwareAddr() [6]byte { return n.mac }

func newTestStack() (*NetStack, *fakeNIC) {
	nic := &fakeNIC{mac: [6]byte{0x00, 0x1b, 0x21, 0xaa, 0xbb, 0xcc}}
	pool := dma.NewPool(16)
	return New(nic, pool), nic
}

func buildARPRequest(sha [6]byte, spa [4]byte, tpa [4]byte) []byte {
	eth := ethernet.Header{Destination: ethernet.Broadcast, Source: sha, Type: ethernet.TypeARP}
	pkt := arp.Packet{Operation: arp.OpRequest, SenderHardware: sha, SenderProtocol: spa, TargetProtocol: tpa}

	buf := make([]byte, ethernet.HeaderLen+arp.HeaderLen)
	n, _ := ethernet.Serialise(eth, buf)
	arp.Serialise(pkt, buf[n:])
	return buf
}

func buildARPReply(sha [6]byte, spa [4]byte, tha [6]byte, tpa [4]byte) []byte {
	eth := ethernet.Header{Destination: tha, Source: sha, Type: ethernet.TypeARP}
	pkt := arp.Packet{Operation: arp.OpReply, SenderHardware: sha, SenderProtocol: spa, TargetHardware: tha, TargetProtocol: tpa}

	buf := make([]byte, ethernet.HeaderLen+arp.HeaderLen)
	n, _ := ethernet.Serialise(eth, buf)
	arp.Serialise(pkt, buf[n:])
	return buf
}

func buildUDPDatagram(dstMAC, srcMAC [6]byte, srcIP, dstIP [4]byte, srcPort, dstPort uint16, payload []byte) []byte {
	eth := ethernet.Header{Destination: dstMAC, Source: srcMAC, Type: ethernet.TypeIPv4}
	ip := ipv4.Header{
		TotalLength: uint16(ipv4.HeaderLen + udp.HeaderLen + len(payload)),
		TTL:         64,
		Protocol:    ipv4.ProtocolUDP,
		Source:      srcIP,
		Destination: dstIP,
	}
	u := udp.Header{SourcePort: srcPort, DestinationPort: dstPort, Length: uint16(udp.HeaderLen + len(payload))}

	buf := make([]byte, ethernet.HeaderLen+ipv4.HeaderLen+udp.HeaderLen+len(payload))
	off, _ := ethernet.Serialise(eth, buf)
	n, _ := ipv4.Serialise(ip, buf[off:])
	off += n
	n, _ = udp.Serialise(u, buf[off:])
	off += n
	copy(buf[off:], payload)

	return buf
}

// S1 — ARP responder.
func TestARPResponder(t *testing.T) {
	ns, nic := newTestStack()

	req := buildARPRequest([6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	ns.HandlePacket(req, len(req), true)

	if len(nic.sent) != 1 {
		t.Fatalf("expected one reply sent, got %d", len(nic.sent))
	}

	eth, err := ethernet.Parse(nic.sent[0])
	if err != nil {
		t.Fatal(err)
	}
	if eth.Destination != [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff} {
		t.Fatalf("reply destination = %x", eth.Destination)
	}
	if eth.Type != ethernet.TypeARP {
		t.Fatalf("reply ether-type = %#x, want ARP", eth.Type)
	}

	reply, err := arp.Parse(nic.sent[0][ethernet.HeaderLen:])
	if err != nil {
		t.Fatal(err)
	}
	if reply.Operation != arp.OpReply {
		t.Fatal("expected oper=reply")
	}
	if reply.SenderHardware != nic.mac {
		t.Fatal("reply sender hardware must be local MAC")
	}
	if reply.SenderProtocol != LocalIP {
		t.Fatal("reply sender protocol must be local IP")
	}
	if reply.TargetHardware != [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff} || reply.TargetProtocol != [4]byte{10, 0, 0, 1} {
		t.Fatal("reply target fields must echo the requester")
	}
}

// S2 — ARP for a foreign IP produces no traffic.
func TestARPForeignIPIgnored(t *testing.T) {
	ns, nic := newTestStack()

	req := buildARPRequest([6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 3})
	ns.HandlePacket(req, len(req), true)

	if len(nic.sent) != 0 {
		t.Fatalf("expected no outbound traffic, got %d frames", len(nic.sent))
	}
}

// S3 — Open blocks until a matching ARP reply arrives.
func TestOpenBlocksUntilARPReply(t *testing.T) {
	ns, _ := newTestStack()

	done := make(chan int, 1)
	go func() {
		fd, err := ns.Open([4]byte{10, 0, 0, 1}, 4444, 0)
		if err != nil {
			t.Error(err)
			return
		}
		done <- fd
	}()

	// give Open a chance to install the ARP request and block
	time.Sleep(20 * time.Millisecond)

	reply := buildARPReply([6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, [4]byte{10, 0, 0, 1}, [6]byte{0, 0, 0, 0, 0, 0}, LocalIP)
	ns.HandlePacket(reply, len(reply), true)

	select {
	case fd := <-done:
		if fd != 0 {
			t.Fatalf("netfd = %d, want 0", fd)
		}
	case <-time.After(time.Second):
		t.Fatal("Open did not unblock after ARP reply")
	}

	ns.lock.Lock()
	c := ns.table[0]
	ns.lock.Unlock()

	if c.remoteMAC != [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66} {
		t.Fatalf("remote MAC = %x", c.remoteMAC)
	}
	if c.localPort != PortOffset {
		t.Fatalf("local port = %d, want %d", c.localPort, PortOffset)
	}
}

// S4 — UDP send emits one correctly-sized frame.
func TestWriteEmitsUDPFrame(t *testing.T) {
	ns, nic := newTestStack()
	openWithReply(t, ns)

	// Open's ARP request is already in nic.sent; count only Write's frames.
	before := len(nic.sent)

	n, err := ns.Write(0, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}

	if len(nic.sent) != before+1 {
		t.Fatalf("expected one frame, got %d", len(nic.sent)-before)
	}
	frame := nic.sent[before]
	if len(frame) != 14+20+8+5 {
		t.Fatalf("frame length = %d, want 47", len(frame))
	}

	ip, _ := ipv4.Parse(frame[ethernet.HeaderLen:])
	if ip.TotalLength != 33 {
		t.Fatalf("IPv4 total_length = %d, want 33", ip.TotalLength)
	}

	u, _ := udp.Parse(frame[ethernet.HeaderLen+ipv4.HeaderLen:])
	if u.Length != 13 {
		t.Fatalf("UDP length = %d, want 13", u.Length)
	}
	if u.DestinationPort != 4444 || u.SourcePort != PortOffset {
		t.Fatalf("ports = %d/%d, want 3000/4444", u.SourcePort, u.DestinationPort)
	}

	payload := frame[ethernet.HeaderLen+ipv4.HeaderLen+udp.HeaderLen:]
	if string(payload) != "hello" {
		t.Fatalf("payload = %q, want %q", payload, "hello")
	}
}

// S5 — UDP receive delivers payload bytes to Read.
func TestReadDeliversPayload(t *testing.T) {
	ns, nic := newTestStack()
	openWithReply(t, ns)

	dg := buildUDPDatagram(nic.mac, [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, [4]byte{10, 0, 0, 1}, LocalIP, 4444, PortOffset, []byte("world"))
	ns.HandlePacket(dg, len(dg), true)

	buf := make([]byte, 16)
	n, err := ns.Read(0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 || string(buf[:5]) != "world" {
		t.Fatalf("Read returned %d bytes %q, want 5 \"world\"", n, buf[:n])
	}
}

// S6 — overflowing datagrams are truncated at the 4 KiB buffer.
func TestOverflowTruncation(t *testing.T) {
	ns, nic := newTestStack()
	openWithReply(t, ns)

	first := make([]byte, 3000)
	second := make([]byte, 2000)
	for i := range first {
		first[i] = 'a'
	}
	for i := range second {
		second[i] = 'b'
	}

	dg1 := buildUDPDatagram(nic.mac, [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, [4]byte{10, 0, 0, 1}, LocalIP, 4444, PortOffset, first)
	dg2 := buildUDPDatagram(nic.mac, [6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, [4]byte{10, 0, 0, 1}, LocalIP, 4444, PortOffset, second)

	ns.HandlePacket(dg1, len(dg1), true)
	ns.HandlePacket(dg2, len(dg2), true)

	ns.lock.Lock()
	rxLen := ns.table[0].rxLen
	ns.lock.Unlock()

	if rxLen != 4096 {
		t.Fatalf("rxLen = %d, want 4096", rxLen)
	}

	buf := make([]byte, 8192)
	n, err := ns.Read(0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4096 {
		t.Fatalf("Read returned %d, want 4096", n)
	}
}

// Port uniqueness: two connections opened in sequence never share a port.
func TestPortUniqueness(t *testing.T) {
	ns, _ := newTestStack()
	openWithReply(t, ns)

	done := make(chan int, 1)
	go func() {
		fd, err := ns.Open([4]byte{10, 0, 0, 5}, 5555, 0)
		if err != nil {
			t.Error(err)
			return
		}
		done <- fd
	}()
	time.Sleep(20 * time.Millisecond)

	reply := buildARPReply([6]byte{0x22, 0x22, 0x22, 0x22, 0x22, 0x22}, [4]byte{10, 0, 0, 5}, [6]byte{}, LocalIP)
	ns.HandlePacket(reply, len(reply), true)

	var fd1 int
	select {
	case fd1 = <-done:
	case <-time.After(time.Second):
		t.Fatal("second Open did not unblock")
	}

	if fd1 == 0 {
		t.Fatal("expected a distinct slot from the first connection")
	}

	ns.lock.Lock()
	p0 := ns.table[0].localPort
	p1 := ns.table[fd1].localPort
	ns.lock.Unlock()

	if p0 == p1 {
		t.Fatal("two open connections must not share a local port")
	}
	if p1 != PortOffset+uint16(fd1) {
		t.Fatalf("local port = %d, want %d", p1, PortOffset+uint16(fd1))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ns, _ := newTestStack()
	openWithReply(t, ns)

	if err := ns.Close(0); err != nil {
		t.Fatal(err)
	}
	if err := ns.Close(0); err != nil {
		t.Fatalf("second Close must be a no-op, got %v", err)
	}
}

// openWithReply opens connection 0 against 10.0.0.1:4444 and immediately
// supplies the ARP reply that unblocks it, returning once Open has
// returned.
func openWithReply(t *testing.T, ns *NetStack) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		if _, err := ns.Open([4]byte{10, 0, 0, 1}, 4444, 0); err != nil {
			t.Error(err)
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	reply := buildARPReply([6]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}, [4]byte{10, 0, 0, 1}, [6]byte{}, LocalIP)
	ns.HandlePacket(reply, len(reply), true)

	<-done
}
