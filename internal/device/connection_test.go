package device

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hollowgate/irfleet-core/internal/gcprotocol"
)

// fakeDevice is a minimal Global Caché TCP server for exercising one
// Connection against scripted behavior.
type fakeDevice struct {
	t        *testing.T
	listener net.Listener
	conn     net.Conn
	reader   *bufio.Reader
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeDevice{t: t, listener: ln}
}

func (f *fakeDevice) addr() (host string, port int) {
	tcpAddr := f.listener.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

func (f *fakeDevice) accept() {
	f.t.Helper()
	conn, err := f.listener.Accept()
	if err != nil {
		f.t.Fatalf("accept: %v", err)
	}
	f.conn = conn
	f.reader = bufio.NewReader(conn)
}

// readLine reads one \r-terminated line written by the Connection.
func (f *fakeDevice) readLine() string {
	f.t.Helper()
	line, err := f.reader.ReadString('\r')
	if err != nil {
		f.t.Fatalf("read line: %v", err)
	}
	return strings.TrimSuffix(line, "\r")
}

func (f *fakeDevice) send(line string) {
	f.t.Helper()
	if _, err := f.conn.Write([]byte(line + "\r")); err != nil {
		f.t.Fatalf("write: %v", err)
	}
}

func (f *fakeDevice) close() {
	if f.conn != nil {
		f.conn.Close()
	}
	f.listener.Close()
}

func openTestConnection(t *testing.T, fd *fakeDevice) *Connection {
	t.Helper()
	host, port := fd.addr()
	conn := NewConnection(Config{Host: host, TCPPort: port, Module: 1, Port: 2})

	go fd.accept()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return conn
}

func testSendIR(id int) gcprotocol.SendIR {
	return gcprotocol.SendIR{
		Module: 1, Port: 2, ID: id, FreqHz: 40000, Repeat: 1, Offset: 1,
		Durations: []int{10, 40},
	}
}

// TestCompletionCorrelation covers S3: a completeir frame resolves the
// matching pending request and nothing else.
func TestCompletionCorrelation(t *testing.T) {
	fd := newFakeDevice(t)
	defer fd.close()
	conn := openTestConnection(t, fd)

	resultCh := make(chan Result, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		frame, err := conn.SendIR(ctx, testSendIR(0))
		resultCh <- Result{Frame: frame, Err: err}
	}()

	line := fd.readLine()
	if !strings.HasPrefix(line, "sendir,1:2,") {
		t.Fatalf("unexpected line: %q", line)
	}
	fields := strings.Split(line, ",")
	id := fields[2]
	fd.send("completeir,1:2," + id)

	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("SendIR error = %v", res.Err)
	}
	if res.Frame.Kind != gcprotocol.FrameCompleteIR {
		t.Errorf("Frame.Kind = %v, want FrameCompleteIR", res.Frame.Kind)
	}
}

// TestSerializationBusyThenComplete covers S4: a second press is not
// written to the socket until the first completes, even after an
// intervening busyIR.
func TestSerializationBusyThenComplete(t *testing.T) {
	fd := newFakeDevice(t)
	defer fd.close()
	conn := openTestConnection(t, fd)

	first := make(chan Result, 1)
	second := make(chan Result, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		frame, err := conn.SendIR(ctx, testSendIR(0))
		first <- Result{Frame: frame, Err: err}
	}()

	firstLine := fd.readLine()
	firstID := strings.Split(firstLine, ",")[2]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		frame, err := conn.SendIR(ctx, testSendIR(0))
		second <- Result{Frame: frame, Err: err}
	}()

	// Give the second goroutine a chance to (incorrectly) write before
	// the first completes.
	time.Sleep(100 * time.Millisecond)

	fd.send("busyIR,1:2," + firstID)

	select {
	case <-second:
		t.Fatal("second SendIR completed before first id completed")
	case <-time.After(150 * time.Millisecond):
	}

	fd.send("completeir,1:2," + firstID)
	res1 := <-first
	if res1.Err != nil {
		t.Fatalf("first SendIR error = %v", res1.Err)
	}

	secondLine := fd.readLine()
	secondID := strings.Split(secondLine, ",")[2]
	fd.send("completeir,1:2," + secondID)

	res2 := <-second
	if res2.Err != nil {
		t.Fatalf("second SendIR error = %v", res2.Err)
	}
}

// TestTimeoutToFaulted covers S5: three consecutive unanswered
// sendir commands transition the connection to Faulted.
func TestTimeoutToFaulted(t *testing.T) {
	fd := newFakeDevice(t)
	defer fd.close()
	host, port := fd.addr()
	conn := NewConnection(Config{Host: host, TCPPort: port, Module: 1, Port: 2})

	go fd.accept()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Fast waveform so sendIRDeadline's duration component is
	// negligible; the dominant term is the fixed 2s completion margin.
	wave := gcprotocol.SendIR{Module: 1, Port: 2, FreqHz: 1_000_000, Repeat: 1, Offset: 1, Durations: []int{1}}

	for i := 0; i < consecutiveTimeoutsToFault; i++ {
		reqCtx, reqCancel := context.WithTimeout(context.Background(), 4*time.Second)
		_, err := conn.SendIR(reqCtx, wave)
		reqCancel()
		if err != ErrTimeout {
			t.Fatalf("attempt %d: error = %v, want ErrTimeout", i, err)
		}
		fd.readLine() // drain the line the device never answers
	}

	deadline := time.Now().Add(3 * time.Second)
	for conn.State() != StateFaulted && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if conn.State() != StateFaulted {
		t.Fatalf("state = %v after %d consecutive timeouts, want Faulted", conn.State(), consecutiveTimeoutsToFault)
	}
}

// TestCancellation covers property 7: a caller abandoning a press via
// context cancellation does not cause a later completeir for that id
// to panic or affect a subsequent request.
func TestCancellation(t *testing.T) {
	fd := newFakeDevice(t)
	defer fd.close()
	conn := openTestConnection(t, fd)

	reqCtx, reqCancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := conn.SendIR(reqCtx, testSendIR(0))
		done <- err
	}()

	line := fd.readLine()
	id := strings.Split(line, ",")[2]
	reqCancel()

	if err := <-done; err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}

	// Cancellation triggers a best-effort stopir ahead of anything else.
	if stop := fd.readLine(); stop != "stopir,1:2" {
		t.Fatalf("stop line = %q, want stopir,1:2", stop)
	}

	// A late completeir for the cancelled id must not disrupt the next
	// request on the same connection.
	fd.send("completeir,1:2," + id)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resultCh := make(chan Result, 1)
	go func() {
		frame, err := conn.SendIR(ctx, testSendIR(0))
		resultCh <- Result{Frame: frame, Err: err}
	}()

	nextLine := fd.readLine()
	nextID := strings.Split(nextLine, ",")[2]
	fd.send("completeir,1:2," + nextID)

	res := <-resultCh
	if res.Err != nil {
		t.Fatalf("SendIR after cancellation error = %v", res.Err)
	}
}
