package regression

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"regeval/internal/answer"
	"regeval/internal/artifact"
	"regeval/internal/logging"
)

// answerServer replies to every question with the given answer and empty lists.
func answerServer(reply string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req answer.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"answer":      reply,
			"interp_jira": []string{},
			"impl_jira":   []string{},
			"impl_pr":     []string{},
		})
	}))
}

var _ = ginkgo.Describe("Regression over HTTP", func() {
	var (
		dir   string
		input string
	)

	ginkgo.BeforeEach(func() {
		dir = ginkgo.GinkgoT().TempDir()
		input = filepath.Join(dir, "input.csv")
		csv := "scenario,question,mode,expected_answer,interp_jira,impl_jira,impl_pr\n" +
			"S1,What is 2+2?,direct,4,,,\n"
		gomega.Expect(os.WriteFile(input, []byte(csv), 0o644)).To(gomega.Succeed())
	})

	run := func(reply string) *Result {
		server := answerServer(reply)
		ginkgo.DeferCleanup(server.Close)

		client, err := answer.New(server.URL, 2, answer.WithHTTPClient(server.Client()))
		gomega.Expect(err).To(gomega.Succeed())

		runner, err := New(client, Config{
			Input:       input,
			OutputDir:   filepath.Join(dir, "output"),
			HistoricDir: filepath.Join(dir, "historic"),
			Runs:        1,
		}, WithLogger(logging.Discard()))
		gomega.Expect(err).To(gomega.Succeed())

		res, err := runner.Run(context.Background())
		gomega.Expect(err).To(gomega.Succeed())
		return res
	}

	ginkgo.It("passes an exact answer with score 1", func() {
		res := run("4")
		gomega.Expect(res.Records).To(gomega.HaveLen(1))
		gomega.Expect(res.Records[0].Score).To(gomega.Equal(1.0))
		gomega.Expect(res.Records[0].Pass).To(gomega.BeTrue())
		gomega.Expect(res.Errors).To(gomega.BeEmpty())

		onDisk, err := artifact.Read(res.Path)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(onDisk).To(gomega.Equal(res.Records))
	})

	ginkgo.It("fails a wrong answer with a score near zero", func() {
		res := run("five")
		gomega.Expect(res.Records).To(gomega.HaveLen(1))
		gomega.Expect(res.Records[0].Score).To(gomega.BeNumerically("<", 0.2))
		gomega.Expect(res.Records[0].Pass).To(gomega.BeFalse())
		gomega.Expect(res.Records[0].Answer).To(gomega.Equal("five"))
	})

	ginkgo.It("moves the previous artifact to history on the next execution", func() {
		first := run("4")
		second := run("4")

		_, err := os.Stat(first.Path)
		gomega.Expect(os.IsNotExist(err)).To(gomega.BeTrue())
		gomega.Expect(second.Rotated).To(gomega.ConsistOf(filepath.Join(dir, "historic", filepath.Base(first.Path))))

		current, err := artifact.List(filepath.Join(dir, "output"))
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(current).To(gomega.ConsistOf(second.Path))
	})
})
