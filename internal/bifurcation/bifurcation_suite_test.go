package bifurcation_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBifurcation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Bifurcation Suite")
}
