// Package simulator emulates AirTouch gateways on a local TCP port.
//
// Gateway speaks the framed protocol: it answers status, ability and group
// name requests, applies control records and pushes the resulting status to
// every connected client. LegacyGateway speaks the fixed-length protocol and
// answers every command with a full status response.
//
// Both are used by the session tests and by "airtouch simulate". Tests can
// drop every connection, inject raw bytes and count the requests received:
//
//	gw := simulator.NewGateway(simulator.DefaultState())
//	if err := gw.Start("127.0.0.1:0"); err != nil {
//	    t.Fatal(err)
//	}
//	defer gw.Close()
//	cfg := session.DefaultConfig(gw.Host(), gw.Port())
package simulator
