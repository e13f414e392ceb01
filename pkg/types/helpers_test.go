package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// companySchema builds the running example:
//
//	Employee --worksIn--> Department
//	Employee --manager--> Employee
//	Department --secretary--> Employee
//	Employee.manager.worksIn = Employee.worksIn
//	Department.secretary.worksIn = id_Department
func companySchema(t *testing.T) *Schema {
	t.Helper()
	s := NewSchema("Company", DefaultTypeside())
	emp, err := s.AddNode("Employee")
	require.NoError(t, err)
	dept, err := s.AddNode("Department")
	require.NoError(t, err)
	_, err = s.AddEdge("worksIn", emp, dept)
	require.NoError(t, err)
	_, err = s.AddEdge("manager", emp, emp)
	require.NoError(t, err)
	_, err = s.AddEdge("secretary", dept, emp)
	require.NoError(t, err)
	_, err = s.AddAttribute("ename", emp, SortString)
	require.NoError(t, err)
	_, err = s.AddAttribute("dname", dept, SortString)
	require.NoError(t, err)

	require.NoError(t, s.AddEquation(mustPath(t, s, "Employee", "manager", "worksIn"), mustPath(t, s, "Employee", "worksIn")))
	require.NoError(t, s.AddEquation(mustPath(t, s, "Department", "secretary", "worksIn"), mustPath(t, s, "Department")))
	require.NoError(t, s.Freeze())
	return s
}

func mustPath(t *testing.T, s *Schema, start string, edges ...string) Path {
	t.Helper()
	p, err := s.PathOf(start, edges...)
	require.NoError(t, err)
	return p
}

func mustNode(t *testing.T, s *Schema, name string) NodeID {
	t.Helper()
	n, err := s.Node(name)
	require.NoError(t, err)
	return n
}

func mustEdge(t *testing.T, s *Schema, name string) EdgeID {
	t.Helper()
	e, err := s.Edge(name)
	require.NoError(t, err)
	return e
}
