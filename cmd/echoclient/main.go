// Command echoclient demonstrates the tcp engine's client path end to end,
// adapted from the teacher's test/echoclient/main.go. Because Transport is
// an external collaborator (spec.md §1) and this binary ships only the
// same-process tcp.Loopback stand-in, echoclient starts its own echo
// listener in-process rather than dialing a separate echoserver instance —
// the two binaries exercise the same engine code paths either way.
package main

import (
	"flag"
	"log"
	"net"
	"time"

	"github.com/go-tcpstack/tcpstack/config"
	"github.com/go-tcpstack/tcpstack/internal/chunkpool"
	"github.com/go-tcpstack/tcpstack/tcp"
)

func main() {
	message := flag.String("message", "hello from echoclient", "payload to send")
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	engineCfg, sockCfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalln("configuration file error:", err)
	}

	pool := chunkpool.New(512, 2048)
	table := tcp.NewTable(tcp.NewCollaborators(pool))
	loop := tcp.NewLoopback(table)
	table.SetTransport(loop)
	table.SetNagle(loop)

	serverIP := net.ParseIP(engineCfg.ServerIP)
	serverPort := uint16(engineCfg.ServerPort)

	server := tcp.NewSocket(table)
	server.SetTimeout(sockCfg.ConnectTimeout)
	if err := server.Bind(serverIP, serverPort); err != nil {
		log.Fatalln("bind error:", err)
	}
	if err := server.Listen(sockCfg.SynQueueSize); err != nil {
		log.Fatalln("listen error:", err)
	}
	go serve(server, sockCfg.DefaultMSS)

	client := tcp.NewSocket(table)
	client.SetTimeout(sockCfg.ConnectTimeout)
	clientIP := net.ParseIP(engineCfg.ClientIP)
	if err := client.Bind(clientIP, 0); err != nil {
		log.Fatalln("bind error:", err)
	}

	if err := client.Connect(serverIP, serverPort); err != nil {
		log.Fatalln("connect error:", err)
	}
	log.Println("connected to echo server")

	if _, err := client.Send([]byte(*message), 0); err != nil {
		log.Fatalln("send error:", err)
	}

	buf := make([]byte, sockCfg.DefaultMSS)
	n, err := client.Receive(buf)
	if err != nil {
		log.Fatalln("receive error:", err)
	}
	log.Printf("echo client got: %s", string(buf[:n]))

	if err := client.Shutdown(tcp.ShutdownBoth); err != nil {
		log.Println("shutdown error:", err)
	}
	time.Sleep(100 * time.Millisecond)
}

func serve(listener *tcp.Socket, mss int) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Println("accept error:", err)
			return
		}
		go func() {
			defer conn.Close()
			buf := make([]byte, mss)
			for {
				n, err := conn.Receive(buf)
				if err != nil {
					return
				}
				if _, err := conn.Send(buf[:n], 0); err != nil {
					return
				}
			}
		}()
	}
}
