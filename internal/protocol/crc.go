package protocol

import "github.com/sigurn/crc16"

var modbusTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum returns the CRC-16/MODBUS of data.
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, modbusTable)
}

// frameChecksum covers the header without its magic bytes, then the payload.
func frameChecksum(header, payload []byte) uint16 {
	crc := crc16.Init(modbusTable)
	crc = crc16.Update(crc, header[2:], modbusTable)
	crc = crc16.Update(crc, payload, modbusTable)
	return crc16.Complete(crc, modbusTable)
}
