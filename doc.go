// Package webchannel is a client for the QWebChannel remote-object protocol.
//
// A remote host publishes objects; this package connects to it over any
// message-oriented transport, downloads a manifest for each published object and
// builds a local proxy per object. Through a proxy the application can invoke
// methods, read and write properties, and subscribe to signals, while the remote
// implementation stays on the other side of the wire.
//
// # Architecture
//
// The protocol engine lives in internal/channel:
//
//   - a call correlator that tags requests with an increasing id and resolves
//     the matching response
//   - an object registry holding exactly one proxy per remote identity
//   - a value unwrapper that turns object references found in property values
//     and method results into live proxies (creating them on first sight)
//   - per-proxy signal bookkeeping that only talks to the remote side on the
//     first connect and the last disconnect of a signal
//   - a connection state machine (Disconnected, Handshaking, Ready) that holds
//     back signals and property updates until the initial object graph exists
//
// Transports live in internal/websocket (gorilla/websocket, text frames) and
// internal/stream (any byte stream, newline delimited). The ws and stream
// packages are the public entry points.
//
// # Quick Start
//
//	import "github.com/luciancaetano/webchannel/ws"
//
//	session, err := ws.Dial(ctx, ws.NewConfig("ws://localhost:12345", nil))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close(ctx)
//
//	if err := session.WaitReady(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	chat, _ := session.Object("chatserver")
//	chat.Connect("newMessage", func(args ...any) {
//	    fmt.Println(args...)
//	})
//	chat.Invoke("sendMessage", "me", "hello", func(result any) {
//	    fmt.Println("sent:", result)
//	})
//
// # Protocol Format
//
// Every message is a JSON object with an integer "type":
//
//	signal=1 propertyUpdate=2 init=3 idle=4 debug=5 invokeMethod=6
//	connectToSignal=7 disconnectFromSignal=8 setProperty=9 response=10
//
// Object references embedded in values look like
//
//	{"__QObject*__": true, "id": "obj", "data": {...manifest...}}
//
// where "data" is only present the first time the client sees that identity.
// Outbound references are sent as {"id": "obj"}.
//
// # Threading
//
// A channel may be used from any goroutine. Inbound messages are processed one
// at a time in arrival order. Callbacks (method results, signal subscribers,
// the ready function, destroyed hooks) run on the goroutine that delivered the
// message and never while the channel's lock is held, so they may call back into
// the channel freely.
//
// # Important
//
//   - Pending calls never time out; a remote host that never answers leaks one
//     slot per call. Object.Call stops waiting when its context ends but the slot
//     stays until a response arrives.
//   - Protocol violations from the remote side are logged and dropped, never
//     returned to the caller.
package webchannel
