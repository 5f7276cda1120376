package domain

// Frame 是已加载的单帧（一旦写入 Frame Store 即不可变）。
//
// Index 从 1 开始；Data 保留原始字节（不做解码缓存，渲染侧自行决定如何解码）。
type Frame struct {
	Index  int
	Path   string
	Data   []byte
	Format string // "jpeg" / "png" / "gif"
	Width  int
	Height int
}

const (
	// FrameResultLoaded 表示帧已写入 Frame Store。
	FrameResultLoaded = "loaded"
	// FrameResultFailed 表示加载出错（跳过，不重试）。
	FrameResultFailed = "failed"
	// FrameResultTimeout 表示单帧超时（跳过，不重试）。
	FrameResultTimeout = "timeout"
	// FrameResultDiscarded 表示 loader 已关闭，结果被丢弃。
	FrameResultDiscarded = "discarded"
)

// FrameOutcome 描述一次单帧加载的结局（供 Observer 与 report 使用）。
type FrameOutcome struct {
	Index  int
	Path   string
	Result string
	Err    error
}
