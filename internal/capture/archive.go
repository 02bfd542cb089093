// Package capture archives the local microphone feed per answer. Frames
// written while an answer is open land in a raw PCM file keyed by the
// backend recording id; closing the answer encodes it for playback.
package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	defaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
)

type Archive struct {
	dir string

	mu          sync.Mutex
	recordingID string
	rawPath     string
	rawFile     *os.File
	sampleRate  int

	encode func(rawPath, recordingID string) (string, error)
}

func NewArchive(dir string) *Archive {
	if dir == "" {
		dir = filepath.Join("data", "capture")
	}

	a := &Archive{dir: dir, sampleRate: defaultSampleRate}
	a.encode = a.defaultEncode
	return a
}

func (a *Archive) SetSampleRate(sampleRate int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sampleRate > 0 {
		a.sampleRate = sampleRate
	}
}

// Writer tees audio frames to dst and, while an answer is open, to the
// answer's raw file. Frames outside an answer pass straight through.
func (a *Archive) Writer(dst io.Writer) io.Writer {
	return &teeWriter{archive: a, dst: dst}
}

// StartAnswer opens the raw file for one answer. An answer already open
// is closed and abandoned first.
func (a *Archive) StartAnswer(recordingID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create capture directory: %w", err)
	}

	if a.rawFile != nil {
		_ = a.rawFile.Close()
	}

	rawPath := filepath.Join(a.dir, recordingID+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	a.recordingID = recordingID
	a.rawPath = rawPath
	a.rawFile = rawFile

	return nil
}

// EndAnswer closes the open answer and returns the encoded file path.
// Without an open answer it returns "" and no error.
func (a *Archive) EndAnswer() (string, error) {
	a.mu.Lock()
	if a.recordingID == "" || a.rawFile == nil {
		a.mu.Unlock()
		return "", nil
	}

	recordingID := a.recordingID
	rawPath := a.rawPath
	rawFile := a.rawFile

	a.recordingID = ""
	a.rawPath = ""
	a.rawFile = nil
	a.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	audioPath, err := a.encode(rawPath, recordingID)
	if err != nil {
		return "", err
	}

	_ = os.Remove(rawPath)
	return audioPath, nil
}

func (a *Archive) writePCM(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rawFile == nil {
		return nil
	}

	if _, err := a.rawFile.Write(data); err != nil {
		return fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return nil
}

func (a *Archive) defaultEncode(rawPath, recordingID string) (string, error) {
	a.mu.Lock()
	sampleRate := a.sampleRate
	a.mu.Unlock()
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	mp3Path := filepath.Join(a.dir, recordingID+".mp3")

	if err := encodeWithFFmpeg(rawPath, mp3Path, sampleRate); err == nil {
		return mp3Path, nil
	}

	wavPath := filepath.Join(a.dir, recordingID+".wav")
	if err := pcmToWav(rawPath, wavPath, sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}

	return wavPath, nil
}

func encodeWithFFmpeg(rawPath, outputPath string, sampleRate int) error {
	cmd := exec.Command(
		"ffmpeg",
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", rawPath,
		outputPath,
	)
	return cmd.Run()
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer out.Close()

	header, err := wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}

	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	if _, err := buf.WriteString("RIFF"); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(chunkSize)); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString("WAVE"); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString("fmt "); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(16)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(1)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(channels)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(byteRate)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(blockAlign)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(bitDepth)); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString("data"); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

type teeWriter struct {
	archive *Archive
	dst     io.Writer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if err != nil {
		return n, err
	}

	if err := w.archive.writePCM(p[:n]); err != nil {
		return n, err
	}

	return n, nil
}
