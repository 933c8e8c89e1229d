package avcdec

// ProfileIDC is the profile_idc value carried in an H.264 SPS and reported by
// the engine's info query.
type ProfileIDC uint8

const (
	ProfileIDCBaseline ProfileIDC = 66
	ProfileIDCMain     ProfileIDC = 77
	ProfileIDCExtended ProfileIDC = 88
	ProfileIDCHigh     ProfileIDC = 100
)

func (p ProfileIDC) String() string {
	switch p {
	case ProfileIDCBaseline:
		return "Baseline"
	case ProfileIDCMain:
		return "Main"
	case ProfileIDCExtended:
		return "Extended"
	case ProfileIDCHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// AVCProfile is the OMX profile bit advertised through profile/level queries.
type AVCProfile uint32

const (
	AVCProfileBaseline AVCProfile = 0x01
	AVCProfileMain     AVCProfile = 0x02
	AVCProfileHigh     AVCProfile = 0x08
)

func (p AVCProfile) String() string {
	switch p {
	case AVCProfileBaseline:
		return "Baseline"
	case AVCProfileMain:
		return "Main"
	case AVCProfileHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// AVCLevel is the OMX level bit advertised through profile/level queries.
type AVCLevel uint32

const (
	AVCLevel1  AVCLevel = 0x0001
	AVCLevel1b AVCLevel = 0x0002
	AVCLevel11 AVCLevel = 0x0004
	AVCLevel12 AVCLevel = 0x0008
	AVCLevel13 AVCLevel = 0x0010
	AVCLevel2  AVCLevel = 0x0020
	AVCLevel21 AVCLevel = 0x0040
	AVCLevel22 AVCLevel = 0x0080
	AVCLevel3  AVCLevel = 0x0100
	AVCLevel31 AVCLevel = 0x0200
	AVCLevel32 AVCLevel = 0x0400
	AVCLevel4  AVCLevel = 0x0800
	AVCLevel41 AVCLevel = 0x1000
	AVCLevel42 AVCLevel = 0x2000
	AVCLevel5  AVCLevel = 0x4000
	AVCLevel51 AVCLevel = 0x8000
)

var levelNames = map[AVCLevel]string{
	AVCLevel1: "1", AVCLevel1b: "1b", AVCLevel11: "1.1", AVCLevel12: "1.2",
	AVCLevel13: "1.3", AVCLevel2: "2", AVCLevel21: "2.1", AVCLevel22: "2.2",
	AVCLevel3: "3", AVCLevel31: "3.1", AVCLevel32: "3.2", AVCLevel4: "4",
	AVCLevel41: "4.1", AVCLevel42: "4.2", AVCLevel5: "5", AVCLevel51: "5.1",
}

func (l AVCLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "Unknown"
}

// ProfileLevel is one entry of the supported profile/level enumeration.
type ProfileLevel struct {
	Profile AVCProfile
	Level   AVCLevel
}

var supportedProfiles = [...]AVCProfile{AVCProfileBaseline, AVCProfileMain, AVCProfileHigh}

var supportedLevels = [...]AVCLevel{
	AVCLevel1, AVCLevel1b, AVCLevel11, AVCLevel12, AVCLevel13,
	AVCLevel2, AVCLevel21, AVCLevel22,
	AVCLevel3, AVCLevel31, AVCLevel32,
	AVCLevel4, AVCLevel41, AVCLevel42,
	AVCLevel5, AVCLevel51,
}

// profileLevels is ordered profile-major, level-minor.
var profileLevels = func() []ProfileLevel {
	out := make([]ProfileLevel, 0, len(supportedProfiles)*len(supportedLevels))
	for _, p := range supportedProfiles {
		for _, l := range supportedLevels {
			out = append(out, ProfileLevel{Profile: p, Level: l})
		}
	}
	return out
}()

// Coding is a port's compression format.
type Coding int

const (
	CodingUnused Coding = iota
	CodingAVC
)

func (c Coding) String() string {
	switch c {
	case CodingAVC:
		return "AVC"
	default:
		return "Unused"
	}
}

// ColorFormat is a port's raw pixel layout.
type ColorFormat int

const (
	ColorFormatUnused ColorFormat = iota
	ColorFormatYUV420Planar
	ColorFormatYUV420SemiPlanar
)

func (c ColorFormat) String() string {
	switch c {
	case ColorFormatYUV420Planar:
		return "YUV420Planar"
	case ColorFormatYUV420SemiPlanar:
		return "YUV420SemiPlanar"
	default:
		return "Unused"
	}
}
