package ytdlp

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strconv"
)

// Progress yt-dlp 输出中解析出的一次进度事件
type Progress struct {
	Percent    float64
	HasPercent bool
	Speed      string
	ETA        string
	Size       string // 总大小, 如 10.00MiB
}

var (
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	speedRe   = regexp.MustCompile(`(\d+(?:\.\d+)?[KMGT]?i?B/s)`)
	etaRe     = regexp.MustCompile(`ETA\s+(\d+(?::\d+)+)`)
	sizeRe    = regexp.MustCompile(`of\s+~?\s*(\d+(?:\.\d+)?[KMGT]?i?B)\b`)
)

// ParseProgressLine 解析一行输出; 百分比与速度独立匹配, 任一命中即产生事件
// 格式: [download]  45.2% of 100.00MiB at 2.50MiB/s ETA 00:22
func ParseProgressLine(line string) (Progress, bool) {
	var p Progress

	if m := percentRe.FindStringSubmatch(line); len(m) == 2 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 100 {
			p.Percent = v
			p.HasPercent = true
		}
	}
	if m := speedRe.FindStringSubmatch(line); len(m) == 2 {
		p.Speed = m[1]
	}
	if !p.HasPercent && p.Speed == "" {
		return Progress{}, false
	}

	if m := etaRe.FindStringSubmatch(line); len(m) == 2 {
		p.ETA = m[1]
	}
	if m := sizeRe.FindStringSubmatch(line); len(m) == 2 {
		p.Size = m[1]
	}
	return p, true
}

// scanLinesCR 以 \n 或 \r 分行, yt-dlp 不带 --newline 时用 \r 刷新进度
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// newLineScanner 创建按 \r/\n 分行的 scanner
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesCR)
	return scanner
}

// consumeLines 逐行回调; 扫描出错后继续读空 r, 避免子进程阻塞在写管道上
func consumeLines(r io.Reader, fn func(string)) error {
	scanner := newLineScanner(r)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	err := scanner.Err()
	_, _ = io.Copy(io.Discard, r)
	return err
}
