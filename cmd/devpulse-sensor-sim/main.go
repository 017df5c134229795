// devpulse-sensor-sim emits synthetic temperature datagrams in the
// sensor line protocol, for exercising the agent's UDP listener without
// hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:12345", "udp address of the agent's sensor listener")
	interval := flag.Duration("interval", 2*time.Second, "time between readings")
	base := flag.Float64("base", 22.0, "base temperature in celsius")
	flag.Parse()

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	log.Printf("sending simulated readings to %s every %s", *addr, *interval)
	for {
		temp := *base + rand.Float64()*5.0
		line := fmt.Sprintf("Temperature: %.2f C", temp)
		if _, err := conn.Write([]byte(line)); err != nil {
			log.Printf("send failed: %v", err)
		} else {
			log.Printf("sent %q", line)
		}
		time.Sleep(*interval)
	}
}
