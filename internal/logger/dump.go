package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

var (
	dumpMu  sync.Mutex
	dumpLog *log.Logger
)

// SetDumpWriter 指定交易所原始报文的落盘目标；nil 关闭 dump。
// 该通道独立于主日志，避免大体量报文刷掉正常输出。
func SetDumpWriter(w io.Writer) {
	dumpMu.Lock()
	defer dumpMu.Unlock()
	if w == nil {
		dumpLog = nil
		return
	}
	dumpLog = log.New(w, "", log.LstdFlags)
}

// DumpPayload 记录一次交易所请求的原始响应，便于离线排查解析问题。
func DumpPayload(exchange, endpoint string, status int, body []byte) {
	dumpMu.Lock()
	out := dumpLog
	dumpMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s status=%d\n", exchange, endpoint, status))
	b.Write(body)
	if len(body) == 0 || body[len(body)-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}
