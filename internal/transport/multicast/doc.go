// Package multicast moves text payloads over one IPv4 multicast group and port.
//
// Every datagram carries base64(utf8(text)). The encoding only keeps the payload
// printable across encoding-sensitive hops; it is not a confidentiality layer.
package multicast
