package controllers_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geeth24/xpool-agent/pkg/chat"
	"github.com/geeth24/xpool-agent/pkg/controllers"
	"github.com/geeth24/xpool-agent/pkg/prompt"
	"github.com/geeth24/xpool-agent/pkg/tasks"
	"github.com/geeth24/xpool-agent/pkg/xpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestControllers(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controllers Suite")
}

// fakeStreamOpener replays a scripted frame stream and records each request.
type fakeStreamOpener struct {
	mu       sync.Mutex
	bodies   []string
	err      error
	reader   io.ReadCloser
	captured [][]xpool.ChatMessage
}

func (f *fakeStreamOpener) StreamChat(ctx context.Context, messages []xpool.ChatMessage) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make([]xpool.ChatMessage, len(messages))
	copy(copied, messages)
	f.captured = append(f.captured, copied)

	if f.err != nil {
		return nil, f.err
	}
	if f.reader != nil {
		return f.reader, nil
	}

	body := f.bodies[0]
	if len(f.bodies) > 1 {
		f.bodies = f.bodies[1:]
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeStreamOpener) requests() [][]xpool.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captured
}

// nullStatusClient never reports progress; registry entries stay queued.
type nullStatusClient struct{}

func (nullStatusClient) TasksStatus(ctx context.Context, ids []string) (map[string]tasks.TaskStatus, error) {
	return map[string]tasks.TaskStatus{}, nil
}

var _ = Describe("ConversationController", func() {
	var (
		opener     *fakeStreamOpener
		registry   *tasks.Registry
		controller *controllers.ConversationController
		ctx        context.Context
	)

	BeforeEach(func() {
		opener = &fakeStreamOpener{}
		registry = tasks.NewRegistry(nullStatusClient{}, time.Hour)
		controller = controllers.NewConversationController(opener, registry)
		ctx = context.Background()
	})

	AfterEach(func() {
		registry.Close()
	})

	Describe("Submit", func() {
		It("should stream content into the assistant turn", func() {
			opener.bodies = []string{
				"data: {\"type\":\"content\",\"content\":\"Hel\"}\n" +
					"data: {\"type\":\"content\",\"content\":\"lo\"}\n" +
					"data: [DONE]\n",
			}

			Expect(controller.Submit(ctx, "hi", "hi")).To(Succeed())

			messages := controller.Messages()
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].Role).To(Equal(chat.RoleUser))
			Expect(messages[0].Content).To(Equal("hi"))
			Expect(messages[1].Role).To(Equal(chat.RoleAssistant))
			Expect(messages[1].Content).To(Equal("Hello"))
			Expect(messages[1].Streaming).To(BeFalse())
			Expect(controller.InFlight()).To(BeFalse())
		})

		It("should transmit wire text while storing display text", func() {
			opener.bodies = []string{"data: [DONE]\n"}

			display := "Source up to 20 candidates for a Go Developer role."
			wire := display + " [max_results=20]"
			Expect(controller.Submit(ctx, display, wire)).To(Succeed())

			requests := opener.requests()
			Expect(requests).To(HaveLen(1))
			Expect(requests[0][len(requests[0])-1].Content).To(Equal(wire))

			messages := controller.Messages()
			Expect(messages[0].Content).To(Equal(display))
		})

		It("should reuse display text for history on later turns", func() {
			opener.bodies = []string{"data: [DONE]\n", "data: [DONE]\n"}

			Expect(controller.Submit(ctx, "first display", "first wire")).To(Succeed())
			Expect(controller.Submit(ctx, "second display", "second wire")).To(Succeed())

			requests := opener.requests()
			Expect(requests).To(HaveLen(2))

			second := requests[1]
			Expect(second[0].Content).To(Equal("first display"))
			Expect(second[len(second)-1].Content).To(Equal("second wire"))
		})

		It("should register spawned tasks from successful tool results", func() {
			opener.bodies = []string{
				"data: {\"type\":\"tool_start\",\"tools\":[\"search\"]}\n" +
					"data: {\"type\":\"tool_result\",\"tool\":\"search\",\"result\":{\"success\":true,\"task_id\":\"t1\",\"job_id\":\"jb-9\"}}\n" +
					"data: [DONE]\n",
			}

			Expect(controller.Submit(ctx, "find gophers", "find gophers")).To(Succeed())

			last, found := controller.LastAssistantMessage()
			Expect(found).To(BeTrue())
			Expect(last.ToolInvocations).To(HaveLen(1))
			Expect(last.ToolInvocations[0].Name).To(Equal("search"))
			Expect(last.ToolInvocations[0].Executing).To(BeFalse())

			task, tracked := registry.Get("t1")
			Expect(tracked).To(BeTrue())
			Expect(task.Status).To(Equal(tasks.StatusQueued))
			Expect(task.Metadata.Tool).To(Equal("search"))
			Expect(task.Metadata.Query).To(Equal("find gophers"))
			Expect(task.Metadata.JobID).To(Equal("jb-9"))
		})

		It("should not register failed or handle-less tool results", func() {
			opener.bodies = []string{
				"data: {\"type\":\"tool_start\",\"tools\":[\"a\",\"b\"]}\n" +
					"data: {\"type\":\"tool_result\",\"tool\":\"a\",\"result\":{\"success\":false,\"task_id\":\"t1\"}}\n" +
					"data: {\"type\":\"tool_result\",\"tool\":\"b\",\"result\":{\"success\":true}}\n" +
					"data: [DONE]\n",
			}

			Expect(controller.Submit(ctx, "go", "go")).To(Succeed())
			Expect(registry.Snapshot()).To(BeEmpty())
		})

		It("should terminate the turn with the failure message when the stream cannot open", func() {
			opener.err = errors.New("connection refused")

			err := controller.Submit(ctx, "hi", "hi")
			Expect(err).To(HaveOccurred())

			last, found := controller.LastAssistantMessage()
			Expect(found).To(BeTrue())
			Expect(last.Content).To(Equal(chat.StreamFailureMessage))
			Expect(last.Streaming).To(BeFalse())
			Expect(controller.InFlight()).To(BeFalse())
		})

		It("should terminate the turn when the backend reports a stream error", func() {
			opener.bodies = []string{
				"data: {\"type\":\"content\",\"content\":\"partial\"}\n" +
					"data: {\"error\":\"API error: 502\"}\n",
			}

			err := controller.Submit(ctx, "hi", "hi")
			Expect(err).To(MatchError(ContainSubstring("API error: 502")))

			last, _ := controller.LastAssistantMessage()
			Expect(last.Content).To(Equal(chat.StreamFailureMessage))
		})

		It("should allow a new turn after a failed one", func() {
			opener.err = errors.New("connection refused")
			Expect(controller.Submit(ctx, "hi", "hi")).ToNot(Succeed())

			opener.err = nil
			opener.bodies = []string{"data: [DONE]\n"}
			Expect(controller.Submit(ctx, "again", "again")).To(Succeed())
		})

		It("should reject overlapping submits", func() {
			pipeReader, pipeWriter := io.Pipe()
			opener.reader = pipeReader

			firstDone := make(chan error, 1)
			go func() {
				firstDone <- controller.Submit(ctx, "long turn", "long turn")
			}()

			Eventually(controller.InFlight).Should(BeTrue())

			err := controller.Submit(ctx, "impatient", "impatient")
			Expect(err).To(MatchError(controllers.ErrTurnInFlight))

			io.WriteString(pipeWriter, "data: [DONE]\n")
			pipeWriter.Close()

			Eventually(firstDone).Should(Receive(BeNil()))
			Expect(controller.InFlight()).To(BeFalse())
		})

		It("should reject empty messages", func() {
			err := controller.Submit(ctx, "   ", "")
			Expect(err).To(MatchError(controllers.ErrEmptyMessage))
			Expect(controller.MessageCount()).To(BeZero())
		})
	})

	Describe("SubmitSelection", func() {
		It("should compile the selection into display and wire forms", func() {
			opener.bodies = []string{"data: [DONE]\n"}

			sel := prompt.Selection{Role: "Go Developer", MaxResults: 15}
			Expect(controller.SubmitSelection(ctx, sel)).To(Succeed())

			requests := opener.requests()
			wire := requests[0][len(requests[0])-1].Content
			Expect(wire).To(ContainSubstring("[max_results=15]"))

			messages := controller.Messages()
			Expect(messages[0].Content).ToNot(ContainSubstring("[max_results="))
		})
	})

	Describe("Restore", func() {
		It("should seed the conversation from persisted history", func() {
			saved := []chat.Message{
				chat.NewUserMessage("old question"),
			}
			Expect(controller.Restore(saved)).To(Succeed())
			Expect(controller.MessageCount()).To(Equal(1))
		})
	})

	Describe("task accessors", func() {
		It("should expose and dismiss tracked tasks", func() {
			registry.Register("t1", tasks.Metadata{})

			Expect(controller.Tasks()).To(HaveLen(1))
			Expect(controller.ActiveTasks()).To(Equal(1))

			controller.DismissTask("t1")
			Expect(controller.Tasks()).To(BeEmpty())
		})
	})
})
