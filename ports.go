package avcdec

// Port indices.
const (
	InputPort  = 0
	OutputPort = 1
)

// PortDir is a port's data direction.
type PortDir int

const (
	DirInput PortDir = iota
	DirOutput
)

const (
	mimeTypeAVC = "video/avc"
	mimeTypeRaw = "video/raw"
	roleAVC     = "video_decoder.avc"
)

// PortDefinition describes a port's buffer contract.
type PortDefinition struct {
	Index int
	Dir   PortDir

	BufferCountMin    int
	BufferCountActual int // Always >= BufferCountMin
	BufferSize        int
	Enabled           bool

	MimeType    string
	Width       int
	Height      int
	Stride      int
	SliceHeight int
	Coding      Coding
	Color       ColorFormat
}

// PortFormat is one entry of a port's supported format enumeration.
type PortFormat struct {
	Port   int
	Index  int
	Coding Coding
	Color  ColorFormat
}

type portSet [2]PortDefinition

func newPorts(cfg *Config) portSet {
	in := PortDefinition{
		Index:             InputPort,
		Dir:               DirInput,
		BufferCountMin:    1,
		BufferCountActual: cfg.InputBufferCount,
		BufferSize:        cfg.InputBufferSize,
		Enabled:           true,
		MimeType:          mimeTypeAVC,
		Coding:            CodingAVC,
		Color:             ColorFormatUnused,
	}
	out := PortDefinition{
		Index:             OutputPort,
		Dir:               DirOutput,
		BufferCountMin:    cfg.OutputBufferMin,
		BufferCountActual: cfg.OutputBufferCount,
		Enabled:           true,
		MimeType:          mimeTypeRaw,
		Coding:            CodingUnused,
		Color:             ColorFormatYUV420SemiPlanar,
	}

	p := portSet{in, out}
	p.setGeometry(cfg.Width, cfg.Height)
	return p
}

// setGeometry updates both ports' frame fields and the output buffer size.
func (p *portSet) setGeometry(width, height int) {
	for i := range p {
		p[i].Width = width
		p[i].Height = height
		p[i].Stride = width
		p[i].SliceHeight = height
	}
	p[OutputPort].BufferSize = FrameSize(width, height)
}

func validPort(port int) bool { return port == InputPort || port == OutputPort }
