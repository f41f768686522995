// Command echoserver is a minimal demonstration listener built on the tcp
// engine, adapted from the teacher's test/echoserver/main.go. It binds a
// socket, accepts connections, and echoes back whatever it reads.
//
// The engine's Transport collaborator is external by design (spec.md §1):
// this binary wires tcp.Loopback, a same-process stand-in that delivers
// segments directly between sockets in one Table. A deployment that needs
// to talk to a real peer process supplies its own Transport — raw sockets,
// a UDP relay, whatever fits — through the same collaborator interface.
package main

import (
	"flag"
	"log"
	"net"

	"github.com/go-tcpstack/tcpstack/config"
	"github.com/go-tcpstack/tcpstack/internal/chunkpool"
	"github.com/go-tcpstack/tcpstack/tcp"
)

func main() {
	serviceIP := flag.String("serviceIP", "", "service IP address to bind (default from config.yaml)")
	port := flag.Int("port", 0, "service port (default from config.yaml)")
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	engineCfg, sockCfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalln("configuration file error:", err)
	}
	if *serviceIP == "" {
		*serviceIP = engineCfg.ServerIP
	}
	if *port == 0 {
		*port = engineCfg.ServerPort
	}

	pool := chunkpool.New(512, 2048)
	table := tcp.NewTable(tcp.NewCollaborators(pool))
	loop := tcp.NewLoopback(table)
	table.SetTransport(loop)
	table.SetNagle(loop)

	listener := tcp.NewSocket(table)
	listener.SetTimeout(sockCfg.ConnectTimeout)
	if err := listener.Bind(net.ParseIP(*serviceIP), uint16(*port)); err != nil {
		log.Fatalln("bind error:", err)
	}
	if err := listener.Listen(sockCfg.SynQueueSize); err != nil {
		log.Fatalln("listen error:", err)
	}
	log.Printf("echo server listening on %s:%d\n", *serviceIP, *port)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Println("accept error:", err)
			continue
		}
		log.Println("new connection accepted")
		go handleConn(conn, sockCfg.DefaultMSS)
	}
}

func handleConn(c *tcp.Socket, mss int) {
	defer c.Close()
	buf := make([]byte, mss)
	for {
		n, err := c.Receive(buf)
		if err != nil {
			log.Println("connection closed:", err)
			return
		}
		log.Printf("echo server got: %s", string(buf[:n]))
		if _, err := c.Send(buf[:n], 0); err != nil {
			log.Println("send error:", err)
			return
		}
	}
}
