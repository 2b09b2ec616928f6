package caniot

// ErrorCode is the fixed wire error enumeration, base 0x3A00.
type ErrorCode int32

const errorBase ErrorCode = 0x3A00

const (
	Ok         ErrorCode = 0
	Einval     ErrorCode = errorBase + iota - 1
	Enproc
	Ecmd
	Ekey
	Etimeout
	Eagain
	Efmt
	Ehandlerc
	Ehandlert
	Etelemetry
	Eunexpected
	Eep
	Ecmdep
	Euninit
	Edriver
	Eapi
	Ekeysection
	Ekeyattr
	Ekeypart
	Enoattr
	Eclsattr
	Ereadonly
	Enull
	Eroattr
	Ereadattr
	Ewriteattr
	Enohandle
	Edevice
	Eframe
	Emlfrm
	Eclass
	Ecfg
	Enotsup
	Enimpl
)

var errorNames = map[ErrorCode]string{
	Ok: "Ok", Einval: "Einval", Enproc: "Enproc", Ecmd: "Ecmd", Ekey: "Ekey",
	Etimeout: "Etimeout", Eagain: "Eagain", Efmt: "Efmt", Ehandlerc: "Ehandlerc",
	Ehandlert: "Ehandlert", Etelemetry: "Etelemetry", Eunexpected: "Eunexpected",
	Eep: "Eep", Ecmdep: "Ecmdep", Euninit: "Euninit", Edriver: "Edriver",
	Eapi: "Eapi", Ekeysection: "Ekeysection", Ekeyattr: "Ekeyattr",
	Ekeypart: "Ekeypart", Enoattr: "Enoattr", Eclsattr: "Eclsattr",
	Ereadonly: "Ereadonly", Enull: "Enull", Eroattr: "Eroattr",
	Ereadattr: "Ereadattr", Ewriteattr: "Ewriteattr", Enohandle: "Enohandle",
	Edevice: "Edevice", Eframe: "Eframe", Emlfrm: "Emlfrm", Eclass: "Eclass",
	Ecfg: "Ecfg", Enotsup: "Enotsup", Enimpl: "Enimpl",
}

func (c ErrorCode) String() string {
	if n, ok := errorNames[c]; ok {
		return n
	}
	return "Eunknown"
}
