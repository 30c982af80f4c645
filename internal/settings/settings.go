package settings

import "fmt"

const CmdName = "stackprof"

var (
	PidFile  = fmt.Sprintf("/tmp/%s.pid", CmdName)
	LogFile  = fmt.Sprintf("/tmp/%s.log", CmdName)
	SockPath = fmt.Sprintf("/tmp/%s.sock", CmdName)
)
