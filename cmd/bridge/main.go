package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"sync"

	"github.com/gorilla/websocket"
)

// event frames one line of agent output for the socket. Type is "stdout",
// "stderr" or "exit".
type event struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: bridge [-addr :8080] AGENT_BINARY [ARGS...]")
		os.Exit(1)
	}

	http.HandleFunc("/ws", handleWS(flag.Args()))
	fmt.Printf("WebSocket bridge listening on %s, path /ws\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// wsWriter serializes writes; both pipe goroutines share the connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(kind, data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(event{Type: kind, Data: data})
}

func handleWS(cmdArgs []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Upgrade error:", err)
			return
		}
		defer conn.Close()

		// one agent process per connection
		cmd := exec.Command(cmdArgs[0], cmdArgs[1:]...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			log.Println("Error getting stdin:", err)
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			log.Println("Error getting stdout:", err)
			return
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			log.Println("Error getting stderr:", err)
			return
		}
		if err := cmd.Start(); err != nil {
			log.Println("Error starting agent:", err)
			return
		}

		out := &wsWriter{conn: conn}
		var wg sync.WaitGroup
		wg.Add(2)
		go pipeLines(&wg, out, "stdout", stdout)
		go pipeLines(&wg, out, "stderr", stderr)

		// Socket messages become agent input lines. When the peer goes
		// away the agent sees EOF on stdin and exits on its own.
		go func() {
			defer stdin.Close()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if _, err := stdin.Write(append(msg, '\n')); err != nil {
					log.Println("Stdin write error:", err)
					return
				}
			}
		}()

		wg.Wait()
		detail := ""
		if err := cmd.Wait(); err != nil {
			detail = err.Error()
		}
		if err := out.send("exit", detail); err != nil {
			log.Println("WS write error:", err)
		}
	}
}

func pipeLines(wg *sync.WaitGroup, out *wsWriter, kind string, r io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	// tool output lines can be large
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := out.send(kind, scanner.Text()); err != nil {
			log.Println("WS write error:", err)
			return
		}
	}
}
