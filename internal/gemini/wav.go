// internal/gemini/wav.go
package gemini

import "encoding/binary"

// PCMToWAV 为裸PCM数据加上RIFF/WAVE头
// 采样位深固定16位，与TTS接口的输出一致
func PCMToWAV(pcm []byte, sampleRate int, numChannels int) []byte {
	const bitsPerSample = 16
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF头
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt子块
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM格式
	binary.LittleEndian.PutUint16(buf[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	// data子块
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// WAVDurationMS 从WAV头计算音频时长（毫秒）
// 无法解析时返回0，调用方应回落到估算时长
func WAVDurationMS(wav []byte) int64 {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return 0
	}

	byteRate := binary.LittleEndian.Uint32(wav[28:32])
	dataSize := binary.LittleEndian.Uint32(wav[40:44])
	if byteRate == 0 {
		return 0
	}
	if int(dataSize) > len(wav)-44 {
		dataSize = uint32(len(wav) - 44)
	}

	return int64(dataSize) * 1000 / int64(byteRate)
}
