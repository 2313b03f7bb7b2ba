// Package firmware parses ESP32 firmware images well enough to determine
// their true size and locate an appended Secure Boot V2 signature block,
// without depending on any particular storage medium. A SectorReader
// supplies sectors on demand — a flash partition on a device, an in-memory
// buffer on the coordinator — and Size walks the image header and segment
// table to compute where the image actually ends, since the sector- or
// partition-sized blob a reader hands back is almost always padded past
// that point.
package firmware
