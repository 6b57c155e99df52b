package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JacLight/mintflow-sub008/broadcast"
	"github.com/JacLight/mintflow-sub008/engine"
	"github.com/JacLight/mintflow-sub008/metadata"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/fatih/color"
	"github.com/google/uuid"
)

// Console is the operator REPL. Commands act on a currently selected tenant;
// every error is printed and the loop re-prompts, the process never dies on
// operator input.
type Console struct {
	flowEngine *engine.FlowEngine
	metadata   metadata.Service
	hub        *broadcast.Hub
	in         *bufio.Scanner
	out        io.Writer
	tenantId   string
}

func NewConsole(flowEngine *engine.FlowEngine, metadataService metadata.Service, hub *broadcast.Hub) *Console {
	return &Console{
		flowEngine: flowEngine,
		metadata:   metadataService,
		hub:        hub,
		in:         bufio.NewScanner(os.Stdin),
		out:        os.Stdout,
	}
}

// Run starts the REPL on its own goroutine. It is deliberately not part of
// the agent's WaitGroup: a blocked stdin read must not hold up shutdown.
func (c *Console) Run() {
	go c.loop()
}

func (c *Console) loop() {
	color.New(color.FgCyan).Fprintln(c.out, "mintflow console, type 'help' for commands")
	for {
		fmt.Fprint(c.out, c.prompt())
		if !c.in.Scan() {
			return
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if !c.dispatch(fields[0], fields[1:]) {
			return
		}
	}
}

func (c *Console) prompt() string {
	if c.tenantId == "" {
		return color.New(color.FgGreen).Sprint("mintflow> ")
	}
	return color.New(color.FgGreen).Sprintf("mintflow[%s]> ", c.tenantId)
}

func (c *Console) dispatch(cmd string, args []string) bool {
	switch cmd {
	case "tenant":
		c.cmdTenant(args)
	case "current":
		c.cmdCurrent()
	case "status":
		c.cmdStatus()
	case "flows":
		c.cmdFlows()
	case "flow":
		c.cmdFlow(args)
	case "start":
		c.cmdStart(args)
	case "resume":
		c.cmdResume(args)
	case "monitor":
		c.cmdMonitor(args)
	case "help":
		c.cmdHelp()
	case "exit", "quit":
		fmt.Fprintln(c.out, "bye")
		return false
	default:
		c.errorf("unknown command %q, type 'help' for commands", cmd)
	}
	return true
}

func (c *Console) cmdTenant(args []string) {
	if len(args) != 1 {
		c.errorf("usage: tenant <tenantId>")
		return
	}
	c.tenantId = args[0]
	fmt.Fprintf(c.out, "tenant set to %s\n", c.tenantId)
}

func (c *Console) cmdCurrent() {
	if c.tenantId == "" {
		fmt.Fprintln(c.out, "no tenant selected")
		return
	}
	fmt.Fprintln(c.out, c.tenantId)
}

func (c *Console) cmdStatus() {
	if !c.requireTenant() {
		return
	}
	records, err := c.flowEngine.ListFlows(c.tenantId)
	if err != nil {
		c.errorf("error listing flows: %v", err)
		return
	}
	counts := make(map[model.FlowStatus]int)
	for _, r := range records {
		counts[r.Status]++
	}
	fmt.Fprintf(c.out, "tenant %s: %d flows\n", c.tenantId, len(records))
	for _, status := range []model.FlowStatus{
		model.FLOW_STATUS_PENDING,
		model.FLOW_STATUS_RUNNING,
		model.FLOW_STATUS_WAITING,
		model.FLOW_STATUS_MANUAL_WAIT,
		model.FLOW_STATUS_COMPLETED,
		model.FLOW_STATUS_FAILED,
	} {
		if counts[status] > 0 {
			fmt.Fprintf(c.out, "  %-12s %d\n", status, counts[status])
		}
	}
}

func (c *Console) cmdFlows() {
	if !c.requireTenant() {
		return
	}
	records, err := c.flowEngine.ListFlows(c.tenantId)
	if err != nil {
		c.errorf("error listing flows: %v", err)
		return
	}
	if len(records) == 0 {
		fmt.Fprintln(c.out, "no flows")
		return
	}
	for _, r := range records {
		fmt.Fprintf(c.out, "%-24s %s\n", r.FlowId, c.colorStatus(r.Status))
	}
}

func (c *Console) cmdFlow(args []string) {
	if !c.requireTenant() {
		return
	}
	if len(args) != 1 {
		c.errorf("usage: flow <flowId>")
		return
	}
	record, err := c.flowEngine.GetFlow(c.tenantId, args[0])
	if err != nil {
		c.errorf("error getting flow %s: %v", args[0], err)
		return
	}
	fmt.Fprintf(c.out, "flow %s: %s\n", record.FlowId, c.colorStatus(record.Status))
	for _, node := range record.NodeStates {
		line := fmt.Sprintf("  %-24s %s", node.NodeId, c.colorStatus(node.Status))
		if node.Error != "" {
			line += color.New(color.FgRed).Sprintf(" (%s)", node.Error)
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) cmdStart(args []string) {
	if !c.requireTenant() {
		return
	}
	if len(args) != 1 {
		c.errorf("usage: start <flowId>")
		return
	}
	if err := c.flowEngine.RunFlow(c.tenantId, args[0]); err != nil {
		c.errorf("error starting flow %s: %v", args[0], err)
		return
	}
	color.New(color.FgGreen).Fprintf(c.out, "flow %s started\n", args[0])
}

func (c *Console) cmdResume(args []string) {
	if !c.requireTenant() {
		return
	}
	if len(args) != 2 {
		c.errorf("usage: resume <flowId> <nodeId>")
		return
	}
	if err := c.flowEngine.ResumeNode(c.tenantId, args[0], args[1], nil); err != nil {
		c.errorf("error resuming node %s: %v", args[1], err)
		return
	}
	color.New(color.FgGreen).Fprintf(c.out, "node %s resumed\n", args[1])
}

// cmdMonitor subscribes to the flow's room and prints every delta as it is
// published. Enter stops watching; a terminal flow status stops it too.
func (c *Console) cmdMonitor(args []string) {
	if !c.requireTenant() {
		return
	}
	if len(args) != 1 {
		c.errorf("usage: monitor <flowId>")
		return
	}
	flowId := args[0]
	roomKey := broadcast.FlowRoom(c.tenantId, flowId)
	observerId := "console-" + uuid.NewString()
	observer := c.hub.Join(roomKey, observerId)

	fmt.Fprintf(c.out, "monitoring %s, press enter to stop\n", flowId)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range observer.C() {
			delta, ok := msg.Payload.(model.StateDelta)
			if !ok {
				continue
			}
			line := fmt.Sprintf("[%s] flow=%s", delta.UpdatedAt.Format("15:04:05"), c.colorStatus(delta.FlowStatus))
			if delta.NodeId != "" {
				line += fmt.Sprintf(" node=%s %s", delta.NodeId, c.colorStatus(delta.NodeStatus))
			}
			if delta.Error != "" {
				line += color.New(color.FgRed).Sprintf(" error=%s", delta.Error)
			}
			fmt.Fprintln(c.out, line)
			if delta.FlowStatus.IsTerminal() {
				fmt.Fprintln(c.out, "flow finished, press enter to continue")
				return
			}
		}
	}()

	c.in.Scan()
	c.hub.Leave(roomKey, observerId)
	<-done
}

func (c *Console) cmdHelp() {
	fmt.Fprint(c.out, `commands:
  tenant <id>              select the current tenant
  current                  show the current tenant
  status                   flow counts by status for the current tenant
  flows                    list flows for the current tenant
  flow <flowId>            show a flow's node states
  start <flowId>           run a flow
  resume <flowId> <nodeId> resume a waiting node
  monitor <flowId>         stream live flow updates (enter stops)
  help                     this text
  exit                     leave the console
`)
}

func (c *Console) requireTenant() bool {
	if c.tenantId == "" {
		c.errorf("no tenant selected, use: tenant <tenantId>")
		return false
	}
	return true
}

func (c *Console) errorf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(c.out, format+"\n", args...)
}

func (c *Console) colorStatus(status model.FlowStatus) string {
	switch status {
	case model.FLOW_STATUS_COMPLETED:
		return color.New(color.FgGreen).Sprint(string(status))
	case model.FLOW_STATUS_FAILED:
		return color.New(color.FgRed).Sprint(string(status))
	case model.FLOW_STATUS_RUNNING:
		return color.New(color.FgCyan).Sprint(string(status))
	case model.FLOW_STATUS_WAITING, model.FLOW_STATUS_MANUAL_WAIT:
		return color.New(color.FgYellow).Sprint(string(status))
	}
	return string(status)
}
