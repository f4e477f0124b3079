package handler

import "github.com/jwalitptl/renova-api/pkg/httputil"

type Response = httputil.Response

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: httputil.StatusSuccess,
		Data:   data,
	}
}
