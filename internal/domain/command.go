package domain

// Command is the operation the manager executes for a request.
type Command string

const (
	CommandAdd       Command = "Add"
	CommandStart     Command = "Start"
	CommandStop      Command = "Stop"
	CommandRestart   Command = "Restart"
	CommandCheck     Command = "Check"
	CommandConfigure Command = "Configure"
	CommandCustom    Command = "Custom"
)

// CommandLevel selects which command list of a CommandRequest is populated.
type CommandLevel string

const (
	CommandLevelCluster   CommandLevel = "cluster"
	CommandLevelService   CommandLevel = "service"
	CommandLevelComponent CommandLevel = "component"
	CommandLevelHost      CommandLevel = "host"
)

func (c Command) Valid() bool {
	switch c {
	case CommandAdd, CommandStart, CommandStop, CommandRestart, CommandCheck, CommandConfigure, CommandCustom:
		return true
	}
	return false
}

func (l CommandLevel) Valid() bool {
	switch l {
	case CommandLevelCluster, CommandLevelService, CommandLevelComponent, CommandLevelHost:
		return true
	}
	return false
}

type ComponentHost struct {
	ComponentName string   `json:"componentName"`
	Hostnames     []string `json:"hostnames"`
}

type ServiceCommand struct {
	ServiceName    string          `json:"serviceName"`
	Installed      bool            `json:"installed"`
	ComponentHosts []ComponentHost `json:"componentHosts"`
	Configs        []ConfigSection `json:"configs"`
}

type HostCommand struct {
	Hostname string `json:"hostname"`
}

// CommandRequest is built fresh per submission and not mutated after it is sent.
type CommandRequest struct {
	ClusterID         uint             `json:"clusterId,omitempty"`
	Command           Command          `json:"command"`
	CustomCommand     string           `json:"customCommand,omitempty"`
	CommandLevel      CommandLevel     `json:"commandLevel"`
	ServiceCommands   []ServiceCommand `json:"serviceCommands,omitempty"`
	ComponentCommands []ComponentHost  `json:"componentCommands,omitempty"`
	HostCommands      []HostCommand    `json:"hostCommands,omitempty"`
}

// CommandResult is what the manager returns for an accepted command.
type CommandResult struct {
	JobID uint   `json:"jobId"`
	Name  string `json:"name"`
}
