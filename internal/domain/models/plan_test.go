package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
)

func TestPlanValidate(t *testing.T) {
	valid := func() *models.Plan {
		return &models.Plan{
			Group: "protocol",
			Contracts: map[string]*models.ContractSpec{
				"Main":        {Artifact: "out/Main.json"},
				"TraitFusion": {Artifact: "out/TraitFusion.json", Args: []string{"@Main"}},
			},
			Initialize: []*models.InitCall{{Target: "Main", Method: "initialize", Args: []string{"@TraitFusion"}}},
		}
	}

	tests := []struct {
		name   string
		mutate func(p *models.Plan)
		errMsg string
	}{
		{name: "valid", mutate: func(p *models.Plan) {}},
		{name: "missing group", mutate: func(p *models.Plan) { p.Group = "" }, errMsg: "group name is required"},
		{name: "no contracts", mutate: func(p *models.Plan) { p.Contracts = nil }, errMsg: "at least one contract"},
		{name: "missing artifact", mutate: func(p *models.Plan) { p.Contracts["Main"].Artifact = "" }, errMsg: "must specify an artifact"},
		{name: "self dependency", mutate: func(p *models.Plan) { p.Contracts["Main"].Deps = []string{"Main"} }, errMsg: "cannot depend on itself"},
		{name: "unknown arg reference", mutate: func(p *models.Plan) { p.Contracts["TraitFusion"].Args = []string{"@Nope"} }, errMsg: "non-existent contract 'Nope'"},
		{name: "unknown init target", mutate: func(p *models.Plan) { p.Initialize[0].Target = "Nope" }, errMsg: "non-existent contract 'Nope'"},
		{name: "missing init method", mutate: func(p *models.Plan) { p.Initialize[0].Method = "" }, errMsg: "must specify a method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid()
			tt.mutate(p)
			err := p.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestContractSpecDependencies(t *testing.T) {
	c := &models.ContractSpec{Deps: []string{"Registry", "Main"}, Args: []string{"@Main", "42", "@Token", "@"}}
	assert.Equal(t, []string{"Main", "Registry", "Token"}, c.Dependencies())

	call := &models.InitCall{Target: "Main", Args: []string{"@Token"}}
	assert.Equal(t, []string{"Main", "Token"}, call.Dependencies())
}
